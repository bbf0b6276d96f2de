// Пакет errors: запись ответов с ошибками в формате docflow.
// Единый формат: {"error": "<сообщение>", "code": "<КОД>"}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeStorageError     = "STORAGE_ERROR"
	CodePersistenceError = "PERSISTENCE_ERROR"
	CodeInferenceError   = "INFERENCE_ERROR"
	CodeNoAPIKey         = "NO_API_KEY"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody: тело ответа ошибки.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Traceback string `json:"traceback,omitempty"`
}

// WriteError записывает ответ ошибки.
// statusCode: HTTP статус-код, code: машиночитаемый код, message: описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorWithTrace(w, statusCode, code, message, "")
}

// WriteErrorWithTrace записывает ответ ошибки со стеком вызовов.
// Пустой traceback в ответ не попадает.
func WriteErrorWithTrace(w http.ResponseWriter, statusCode int, code, message, traceback string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     message,
		Code:      code,
		Traceback: traceback,
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError: 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound: 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized: 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InternalError: 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
