package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/docflow/internal/api/handlers"
	"github.com/bigkaa/docflow/internal/api/middleware"
	"github.com/bigkaa/docflow/internal/blobstore"
	"github.com/bigkaa/docflow/internal/config"
	"github.com/bigkaa/docflow/internal/database"
	"github.com/bigkaa/docflow/internal/extractor"
	"github.com/bigkaa/docflow/internal/inference"
	"github.com/bigkaa/docflow/internal/repository"
	"github.com/bigkaa/docflow/internal/server"
	"github.com/bigkaa/docflow/internal/service"
)

func serveCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "не применять миграции при старте")
	return cmd
}

//nolint:funlen // последовательная сборка зависимостей
func runServe(ctx context.Context, skipMigrations bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Конфигурация и логирование
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	logger.Info("docflow запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("environment", cfg.Environment),
	)

	if os.Getenv("DF_DEPHEALTH_GROUP") == "" {
		logger.Warn("DF_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 2. Миграции и PostgreSQL
	if !skipMigrations {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return err
		}
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 3. Repositories
	controlRepo := repository.NewControlRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	promptRepo := repository.NewPromptRepository(pool)
	indicatorRepo := repository.NewIndicatorRepository(pool)
	historyRepo := repository.NewAnalysisHistoryRepository(pool)
	loginRepo := repository.NewLoginHistoryRepository(pool)
	keyRepo := repository.NewInferenceKeyRepository(pool)

	// 4. Внешние зависимости: B2, извлечение текста, Gemini
	blobs, err := blobstore.New(ctx, cfg.B2KeyID, cfg.B2ApplicationKey, cfg.B2Bucket,
		cfg.B2PublicBaseURL, cfg.DownloadURLTTL, logger)
	if err != nil {
		return err
	}
	pdf := extractor.NewPDFExtractor(logger)
	gemini := inference.NewGeminiClient(keyRepo, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if cfg.GeminiAPIKey == "" {
		logger.Info("DF_GEMINI_API_KEY не задан, ключ будет браться только из inference_keys")
	}

	// 5. Services
	prompts := service.NewPromptResolver(promptRepo, logger)
	replicator := service.NewDeadlineReplicator(controlRepo, logger)
	ingestion := service.NewIngestionPipeline(pdf, blobs, documentRepo, controlRepo, prompts, gemini, logger)
	documents := service.NewDocumentService(documentRepo, blobs, cfg.DownloadURLTTL, logger)
	analysis := service.NewAnalysisService(prompts, gemini, documentRepo, indicatorRepo, historyRepo, logger)
	telemetry := service.NewTelemetryService(loginRepo, logger)

	// 6. Аутентификация: HS256 с общим секретом или JWKS провайдера
	var verifier middleware.IdentityVerifier
	if cfg.JWTSecret != "" {
		verifier = middleware.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTLeeway)
		logger.Info("Проверка токенов: HS256")
	} else {
		verifier, err = middleware.NewJWKSVerifier(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTAudience,
			cfg.JWKSClientTimeout, cfg.JWKSRefreshInterval, cfg.JWTLeeway, logger)
		if err != nil {
			return err
		}
		logger.Info("Проверка токенов: JWKS",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	}
	auth := middleware.NewAuth(verifier, logger)

	// 7. Health и API handlers
	pgChecker := database.NewReadinessChecker(pool)
	authChecker := middleware.NewAuthProviderReadinessChecker(cfg.AuthHealthURL(), cfg.JWKSClientTimeout)
	healthHandler := handlers.NewHealthHandler(pgChecker, authChecker)

	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		replicator,
		ingestion,
		documents,
		analysis,
		prompts,
		telemetry,
		logger,
	)

	// 8. topologymetrics: мониторинг зависимостей (PostgreSQL + провайдер)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:      "docflow",
		Group:          cfg.DephealthGroup,
		PgConnURL:      cfg.DatabaseURL(),
		AuthURL:        cfg.AuthURL,
		AuthHealthPath: cfg.AuthHealthPath,
		CheckInterval:  cfg.DephealthCheckInterval,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
			defer dephealthSvc.Stop()
		}
	}

	// 9. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, apiHandler, auth)
	return srv.Run(ctx)
}
