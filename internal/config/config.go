// Пакет config: загрузка и валидация конфигурации docflow
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// EnvProduction: значение DF_ENVIRONMENT для production.
const EnvProduction = "production"

// Config содержит все параметры конфигурации docflow.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Окружение (production, staging, development). Вне production
	// ответы 500 содержат stack trace.
	Environment string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера. WriteTimeout покрывает синхронный анализ ИИ.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Провайдер аутентификации ---

	// URL провайдера (например, https://xyz.supabase.co)
	AuthURL string
	// Путь health endpoint провайдера для topologymetrics
	AuthHealthPath string
	// Issuer JWT (авто-вычисляется из AuthURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из AuthURL, если не задан)
	JWTJWKSURL string
	// Общий секрет HS256. Если задан, JWKS не используется.
	JWTSecret string
	// Ожидаемый audience (пусто: не проверяется)
	JWTAudience string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration

	// --- Backblaze B2 ---

	B2KeyID          string
	B2ApplicationKey string
	B2Bucket         string
	// Базовый URL постоянных ссылок (fallback при ошибке выдачи токена)
	B2PublicBaseURL string
	// Время жизни временной ссылки на скачивание
	DownloadURLTTL time.Duration

	// --- Gemini ---

	// Модель генерации
	GeminiModel string
	// Ключ API по умолчанию; ключ из таблицы inference_keys имеет приоритет
	GeminiAPIKey string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// DF_PORT: порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DF_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DF_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DF_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DF_ENVIRONMENT: окружение (по умолчанию production)
	cfg.Environment = strings.ToLower(getEnvDefault("DF_ENVIRONMENT", EnvProduction))

	// DF_LOG_LEVEL: уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DF_LOG_LEVEL: %w", err)
	}

	// DF_LOG_FORMAT: формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DF_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("DF_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("DF_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("DF_HTTP_WRITE_TIMEOUT", 180*time.Second); err != nil {
		return nil, fmt.Errorf("DF_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("DF_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("DF_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("DF_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("DF_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DF_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("DF_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("DF_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("DF_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("DF_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DF_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Провайдер аутентификации ---

	// DF_AUTH_URL: обязательный
	if cfg.AuthURL, err = getEnvRequired("DF_AUTH_URL"); err != nil {
		return nil, err
	}
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	if _, err := url.ParseRequestURI(cfg.AuthURL); err != nil {
		return nil, fmt.Errorf("DF_AUTH_URL: некорректный URL %q", cfg.AuthURL)
	}

	cfg.AuthHealthPath = getEnvDefault("DF_AUTH_HEALTH_PATH", "/auth/v1/health")

	// DF_JWT_ISSUER: авто-вычисляется из AuthURL, если не задан
	cfg.JWTIssuer = getEnvDefault("DF_JWT_ISSUER", cfg.AuthURL+"/auth/v1")

	// DF_JWT_JWKS_URL: авто-вычисляется из AuthURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("DF_JWT_JWKS_URL", cfg.AuthURL+"/auth/v1/.well-known/jwks.json")

	cfg.JWTSecret = os.Getenv("DF_JWT_SECRET")
	cfg.JWTAudience = getEnvDefault("DF_JWT_AUDIENCE", "authenticated")

	if cfg.JWTLeeway, err = getEnvDuration("DF_JWT_LEEWAY", 30*time.Second); err != nil {
		return nil, fmt.Errorf("DF_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("DF_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("DF_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("DF_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("DF_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- Backblaze B2 ---

	if cfg.B2KeyID, err = getEnvRequired("DF_B2_KEY_ID"); err != nil {
		return nil, err
	}
	if cfg.B2ApplicationKey, err = getEnvRequired("DF_B2_APPLICATION_KEY"); err != nil {
		return nil, err
	}
	if cfg.B2Bucket, err = getEnvRequired("DF_B2_BUCKET"); err != nil {
		return nil, err
	}
	cfg.B2PublicBaseURL = strings.TrimRight(
		getEnvDefault("DF_B2_PUBLIC_BASE_URL", "https://f002.backblazeb2.com/file"), "/")

	// DF_DOWNLOAD_URL_TTL: время жизни временной ссылки (по умолчанию 10m)
	cfg.DownloadURLTTL, err = getEnvDuration("DF_DOWNLOAD_URL_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DF_DOWNLOAD_URL_TTL: %w", err)
	}
	if cfg.DownloadURLTTL < time.Second || cfg.DownloadURLTTL > 7*24*time.Hour {
		return nil, fmt.Errorf("DF_DOWNLOAD_URL_TTL: значение %s вне допустимого диапазона 1s-168h", cfg.DownloadURLTTL)
	}

	// --- Gemini ---

	cfg.GeminiModel = getEnvDefault("DF_GEMINI_MODEL", "gemini-2.0-flash")
	cfg.GeminiAPIKey = os.Getenv("DF_GEMINI_API_KEY")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("DF_DEPHEALTH_GROUP", "docflow")
	cfg.DephealthCheckInterval, err = getEnvDuration("DF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("DF_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IsProduction сообщает, работает ли сервис в production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// AuthHealthURL возвращает полный URL health endpoint провайдера аутентификации.
func (c *Config) AuthHealthURL() string {
	path := c.AuthHealthPath
	if path == "" {
		path = "/health"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.AuthURL, "/") + path
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
