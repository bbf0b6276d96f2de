// Пакет server: HTTP-сервер docflow с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/docflow/internal/api/handlers"
	"github.com/bigkaa/docflow/internal/api/middleware"
	"github.com/bigkaa/docflow/internal/config"
)

// Пути, доступные без токена. Health и metrics опрашиваются Kubernetes
// и Prometheus напрямую, probe: диагностика клиента до входа.
var publicPaths = []string{"/health/", "/metrics", "/api/v1/logins/probe"}

// Server: HTTP-сервер docflow.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth может быть nil (тесты без аутентификации).
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, auth *middleware.Auth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, h, auth),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами API.
func NewRouter(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, auth *middleware.Auth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Recoverer(!cfg.IsProduction(), logger))

	if auth != nil {
		router.Use(authWithExclusions(auth, publicPaths...))
	}

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/repetitions", h.AddRepetitions)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.UploadDocument)
			r.Get("/", h.ListDocuments)
			r.Get("/{id}", h.GetDocument)
			r.Get("/{id}/download-url", h.GetDownloadURL)
			r.Post("/{id}/analysis", h.AnalyzeDocument)
		})

		r.Get("/prompts", h.ListPrompts)

		r.Post("/analysis", h.AnalyzeText)
		r.Post("/analysis/indicators", h.AnalyzeIndicators)
		r.Get("/analysis/history", h.AnalysisHistory)
		r.Post("/indicators/{id}/analysis", h.AnalyzeIndicator)

		r.Post("/logins", h.RecordLogin)
		r.Get("/logins/probe", h.ProbeLogin)
	})

	return router
}

// authWithExclusions оборачивает Auth.Middleware(), пропуская указанные пути.
// Путь с завершающим "/" исключает всё поддерево, остальные сравниваются точно.
func authWithExclusions(auth *middleware.Auth, excluded ...string) func(http.Handler) http.Handler {
	authMiddleware := auth.Middleware()

	return func(next http.Handler) http.Handler {
		protected := authMiddleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, excluded) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string, excluded []string) bool {
	for _, p := range excluded {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
