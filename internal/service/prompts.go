// prompts.go: выбор инструкции (промпта) для анализа.
// Порядок: промпт категории → явный ID → промпт по умолчанию → встроенный текст.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/repository"
)

// DefaultInstruction: инструкция, если ни одна таблица не дала промпт.
const DefaultInstruction = "Faça uma análise do texto abaixo:"

// Источники промпта.
const (
	PromptSourceCategory  = "category"
	PromptSourceExplicit  = "explicit"
	PromptSourceIndicator = "indicator_prompt"
	PromptSourceDefault   = "default"
	PromptSourceBuiltin   = "builtin"
)

// Resolution: выбранный промпт.
type Resolution struct {
	Text     string
	Source   string
	PromptID *string
}

// PromptResolver: выбор промпта для анализа.
type PromptResolver struct {
	prompts repository.PromptRepository
	logger  *slog.Logger
}

// NewPromptResolver создаёт сервис выбора промптов.
func NewPromptResolver(prompts repository.PromptRepository, logger *slog.Logger) *PromptResolver {
	return &PromptResolver{
		prompts: prompts,
		logger:  logger.With(slog.String("component", "prompt_resolver")),
	}
}

// Resolve возвращает первый непустой промпт. Никогда не возвращает ошибку:
// ошибки чтения логируются и считаются отсутствием промпта.
func (r *PromptResolver) Resolve(ctx context.Context, categoryID *int64, explicitID string) Resolution {
	if categoryID != nil {
		if res, ok := r.lookup(PromptSourceCategory, func() (*model.Prompt, error) {
			return r.prompts.GetCategoryPrompt(ctx, *categoryID)
		}); ok {
			return res
		}
	}

	if explicitID = strings.TrimSpace(explicitID); explicitID != "" {
		if res, ok := r.lookup(PromptSourceExplicit, func() (*model.Prompt, error) {
			return r.prompts.GetByID(ctx, explicitID)
		}); ok {
			return res
		}
		if res, ok := r.lookup(PromptSourceIndicator, func() (*model.Prompt, error) {
			return r.prompts.GetIndicatorPromptByID(ctx, explicitID)
		}); ok {
			return res
		}
	}

	if res, ok := r.lookup(PromptSourceDefault, func() (*model.Prompt, error) {
		return r.prompts.GetDefault(ctx)
	}); ok {
		return res
	}

	return Resolution{Text: DefaultInstruction, Source: PromptSourceBuiltin}
}

func (r *PromptResolver) lookup(source string, get func() (*model.Prompt, error)) (Resolution, bool) {
	p, err := get()
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("Ошибка чтения промпта",
				slog.String("source", source),
				slog.String("error", err.Error()),
			)
		}
		return Resolution{}, false
	}
	if p == nil || strings.TrimSpace(p.Text) == "" {
		return Resolution{}, false
	}

	id := p.ID
	return Resolution{Text: p.Text, Source: source, PromptID: &id}, true
}

// ListPrompts возвращает все промпты основной таблицы.
func (r *PromptResolver) ListPrompts(ctx context.Context) ([]*model.Prompt, error) {
	prompts, err := r.prompts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	return prompts, nil
}
