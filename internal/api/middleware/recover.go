// recover.go: перехват паник в обработчиках.
// Паника превращается в 500 с сообщением; вне production в ответ добавляется стек.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
)

// Recoverer возвращает middleware перехвата паник.
// exposeTrace: добавлять ли стек вызовов в тело ответа.
func Recoverer(exposeTrace bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				stack := string(debug.Stack())
				message := fmt.Sprintf("Внутренняя ошибка: %v", rec)
				logger.Error("Паника в обработчике",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", stack),
				)

				trace := ""
				if exposeTrace {
					trace = stack
				}
				apierrors.WriteErrorWithTrace(w, http.StatusInternalServerError, apierrors.CodeInternalError, message, trace)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
