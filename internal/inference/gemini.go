// Пакет inference: клиент генеративной модели Gemini.
// Ключ API читается из таблицы inference_keys при каждом вызове,
// при отсутствии активного ключа используется DF_GEMINI_API_KEY.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/bigkaa/docflow/internal/repository"
)

var (
	// ErrNoAPIKey: ключ API не настроен ни в БД, ни в конфигурации.
	ErrNoAPIKey = errors.New("ключ API Gemini не настроен")
	// ErrEmptyResponse: модель вернула пустой ответ.
	ErrEmptyResponse = errors.New("пустой ответ модели")
)

// KeySource: источник активного ключа API.
type KeySource interface {
	ActiveKey(ctx context.Context) (string, error)
}

// generateFunc выполняет один запрос генерации с указанным ключом.
type generateFunc func(ctx context.Context, apiKey, model, prompt string) (string, error)

// GeminiClient: генерация текста через Gemini API.
type GeminiClient struct {
	keys        KeySource
	fallbackKey string
	model       string
	generate    generateFunc
	logger      *slog.Logger
}

// NewGeminiClient создаёт клиент. keys может быть nil, тогда используется только fallbackKey.
func NewGeminiClient(keys KeySource, fallbackKey, model string, logger *slog.Logger) *GeminiClient {
	return &GeminiClient{
		keys:        keys,
		fallbackKey: fallbackKey,
		model:       model,
		generate:    generateContent,
		logger:      logger.With(slog.String("component", "gemini")),
	}
}

// Model возвращает имя модели.
func (c *GeminiClient) Model() string {
	return c.model
}

// Generate отправляет prompt модели и возвращает текст ответа.
// Повторных попыток нет.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	key, err := c.resolveKey(ctx)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Запрос к модели",
		slog.String("model", c.model),
		slog.Int("prompt_chars", len([]rune(prompt))),
	)

	text, err := c.generate(ctx, key, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("генерация (%s): %w", c.model, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// resolveKey возвращает активный ключ из БД, иначе ключ из конфигурации.
// Ошибка чтения БД не фатальна.
func (c *GeminiClient) resolveKey(ctx context.Context) (string, error) {
	if c.keys != nil {
		key, err := c.keys.ActiveKey(ctx)
		switch {
		case err == nil && key != "":
			return key, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			c.logger.Warn("Ошибка чтения ключа API из БД", slog.String("error", err.Error()))
		}
	}

	if c.fallbackKey != "" {
		return c.fallbackKey, nil
	}
	return "", ErrNoAPIKey
}

// generateContent создаёт клиент genai с ключом и выполняет GenerateContent.
func generateContent(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("создание клиента genai: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
