// analysis.go: анализ текстов, документов и показателей генеративной моделью.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/inference"
	"github.com/bigkaa/docflow/internal/repository"
)

const (
	// DefaultHistoryLimit: размер страницы истории анализов по умолчанию.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit: максимальный размер страницы истории анализов.
	MaxHistoryLimit = 100
)

// AnalysisResult: результат одного запроса к модели.
type AnalysisResult struct {
	Result       string
	PromptText   string
	PromptID     *string
	PromptSource string
}

// IndicatorRef: показатель в пакетном анализе.
type IndicatorRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IndicatorsAnalysisResult: результат пакетного анализа показателей.
type IndicatorsAnalysisResult struct {
	AnalysisResult
	// HistoryID: ID записи истории, nil если запись не сохранена
	HistoryID *int64
	Saved     bool
}

// IndicatorAnalysisResult: результат анализа одного показателя.
type IndicatorAnalysisResult struct {
	AnalysisResult
	Indicator *model.Indicator
	Saved     bool
}

// AnalysisService: анализ по запросу пользователя.
type AnalysisService struct {
	prompts    *PromptResolver
	generator  Generator
	documents  repository.DocumentRepository
	indicators repository.IndicatorRepository
	history    repository.AnalysisHistoryRepository
	logger     *slog.Logger
}

// NewAnalysisService создаёт сервис анализа.
func NewAnalysisService(
	prompts *PromptResolver,
	generator Generator,
	documents repository.DocumentRepository,
	indicators repository.IndicatorRepository,
	history repository.AnalysisHistoryRepository,
	logger *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		prompts:    prompts,
		generator:  generator,
		documents:  documents,
		indicators: indicators,
		history:    history,
		logger:     logger.With(slog.String("component", "analysis")),
	}
}

// AnalyzeText анализирует произвольный текст с выбранным промптом.
func (s *AnalysisService) AnalyzeText(ctx context.Context, promptID string, categoryID *int64, text string) (*AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: не передан текст для анализа", ErrValidation)
	}
	return s.run(ctx, "text", s.prompts.Resolve(ctx, categoryID, promptID), text)
}

// AnalyzeIndicators анализирует объединённый текст нескольких показателей
// и сохраняет запись в истории. Ошибка сохранения истории не фатальна.
func (s *AnalysisService) AnalyzeIndicators(ctx context.Context, userID, promptID, text string, indicators []IndicatorRef) (*IndicatorsAnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: не передан текст для анализа", ErrValidation)
	}
	if len(indicators) == 0 {
		return nil, fmt.Errorf("%w: не передан список показателей", ErrValidation)
	}

	res, err := s.run(ctx, "indicators", s.prompts.Resolve(ctx, nil, promptID), text)
	if err != nil {
		return nil, err
	}

	out := &IndicatorsAnalysisResult{AnalysisResult: *res}

	h := &model.AnalysisHistory{
		IndicatorIDs:   make([]int64, 0, len(indicators)),
		IndicatorNames: make([]string, 0, len(indicators)),
		Result:         res.Result,
		PromptText:     res.PromptText,
		PromptID:       res.PromptID,
		UserID:         userID,
	}
	for _, ind := range indicators {
		h.IndicatorIDs = append(h.IndicatorIDs, ind.ID)
		h.IndicatorNames = append(h.IndicatorNames, ind.Name)
	}

	if err := s.history.Create(ctx, h); err != nil {
		s.logger.Warn("История анализа не сохранена",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return out, nil
	}

	out.HistoryID = &h.ID
	out.Saved = true
	return out, nil
}

// History возвращает последние пакетные анализы пользователя.
func (s *AnalysisService) History(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	items, err := s.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	return items, nil
}

// AnalyzeDocument повторно анализирует сохранённый текст документа
// и записывает результат в документ.
func (s *AnalysisService) AnalyzeDocument(ctx context.Context, documentID int64, promptID string) (*AnalysisResult, error) {
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: документ %d", ErrNotFound, documentID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: у документа %d нет извлечённого текста", ErrValidation, documentID)
	}

	res, err := s.run(ctx, "document", s.prompts.Resolve(ctx, &doc.CategoryID, promptID), doc.Content)
	if err != nil {
		return nil, err
	}

	if err := s.documents.SetAnalysisResult(ctx, documentID, res.Result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	return res, nil
}

// AnalyzeIndicator анализирует один показатель. Если text пуст,
// анализируется название и описание показателя.
// Результат сохраняется в показателе best-effort.
func (s *AnalysisService) AnalyzeIndicator(ctx context.Context, indicatorID int64, promptID, text string) (*IndicatorAnalysisResult, error) {
	ind, err := s.indicators.GetByID(ctx, indicatorID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: показатель %d", ErrNotFound, indicatorID)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}

	if strings.TrimSpace(text) == "" {
		text = ind.Name
		if ind.Description != nil && *ind.Description != "" {
			text += "\n" + *ind.Description
		}
	}

	res, err := s.run(ctx, "indicator", s.prompts.Resolve(ctx, nil, promptID), text)
	if err != nil {
		return nil, err
	}

	out := &IndicatorAnalysisResult{AnalysisResult: *res, Indicator: ind}
	if err := s.indicators.SaveAnalysis(ctx, indicatorID, res.Result, res.PromptID, res.PromptText); err != nil {
		s.logger.Warn("Результат анализа показателя не сохранён",
			slog.Int64("indicator_id", indicatorID),
			slog.String("error", err.Error()),
		)
		return out, nil
	}

	ind.AnalysisResult = &out.Result
	ind.PromptID = res.PromptID
	ind.PromptText = &out.PromptText
	out.Saved = true
	return out, nil
}

func (s *AnalysisService) run(ctx context.Context, kind string, prompt Resolution, text string) (*AnalysisResult, error) {
	result, err := generate(ctx, s.generator, kind, prompt.Text, text)
	if err != nil {
		s.logger.Error("Ошибка анализа",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return &AnalysisResult{
		Result:       result,
		PromptText:   prompt.Text,
		PromptID:     prompt.PromptID,
		PromptSource: prompt.Source,
	}, nil
}

// generate отправляет модели "<инструкция>\n\n<текст>".
// Ошибки: ErrNoAPIKey, ErrInference.
func generate(ctx context.Context, gen Generator, kind, instruction, text string) (string, error) {
	result, err := gen.Generate(ctx, instruction+"\n\n"+text)
	if err != nil {
		if errors.Is(err, inference.ErrNoAPIKey) {
			analysisTotal.WithLabelValues(kind, "no_api_key").Inc()
			return "", ErrNoAPIKey
		}
		analysisTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("%w: %w", ErrInference, err) //nolint:errorlint // намеренный двойной wrap
	}
	analysisTotal.WithLabelValues(kind, "ok").Inc()
	return result, nil
}
