// dephealth.go: интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// docflow мониторит две зависимости:
//   - PostgreSQL: SQL checker через существующий pgxpool (connection pool mode, critical)
//   - провайдер аутентификации: HTTP checker к health endpoint (critical)
//
// Backblaze B2 и Gemini не мониторятся: их API не отвечают без авторизации.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health: состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds: задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для провайдера аутентификации
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthService: сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthConfig: параметры мониторинга.
type DephealthConfig struct {
	// ServiceID: имя вершины графа текущего приложения
	ServiceID string
	// Group: имя группы в метриках (DF_DEPHEALTH_GROUP)
	Group string
	// PgConnURL: URL PostgreSQL без пароля (для лейблов, не для подключения)
	PgConnURL string
	// AuthURL: базовый URL провайдера аутентификации
	AuthURL string
	// AuthHealthPath: путь health endpoint провайдера
	AuthHealthPath string
	// CheckInterval: интервал проверки (DF_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
// db: *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool().
func NewDephealthService(cfg DephealthConfig, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(cfg DephealthConfig, db *sql.DB, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, db *sql.DB, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	authOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.AuthURL),
		dephealth.WithHTTPHealthPath(normalizeHealthPath(cfg.AuthHealthPath)),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if strings.HasPrefix(cfg.AuthURL, "https://") {
		authOpts = append(authOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.PgConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("auth-provider", authOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + провайдер аутентификации)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ: имя зависимости, значение: true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// normalizeHealthPath добавляет ведущий "/" и подставляет /health для пустого пути.
func normalizeHealthPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/health"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
