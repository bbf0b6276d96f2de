package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/docflow/internal/domain/model"
)

// IndicatorRepository: доступ к таблице indicators.
type IndicatorRepository interface {
	// GetByID возвращает показатель по ID.
	GetByID(ctx context.Context, id int64) (*model.Indicator, error)
	// SaveAnalysis сохраняет результат анализа, промпт и время анализа.
	SaveAnalysis(ctx context.Context, id int64, result string, promptID *string, promptText string) error
}

type indicatorRepo struct {
	db DBTX
}

// NewIndicatorRepository создаёт репозиторий показателей.
func NewIndicatorRepository(db DBTX) IndicatorRepository {
	return &indicatorRepo{db: db}
}

func (r *indicatorRepo) GetByID(ctx context.Context, id int64) (*model.Indicator, error) {
	ind := &model.Indicator{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, analysis_result, prompt_id, prompt_text, analyzed_at
		FROM indicators WHERE id = $1`, id).Scan(
		&ind.ID, &ind.Name, &ind.Description, &ind.AnalysisResult,
		&ind.PromptID, &ind.PromptText, &ind.AnalyzedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения показателя: %w", err)
	}
	return ind, nil
}

func (r *indicatorRepo) SaveAnalysis(ctx context.Context, id int64, result string, promptID *string, promptText string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE indicators
		SET analysis_result = $2, prompt_id = $3, prompt_text = $4, analyzed_at = NOW()
		WHERE id = $1`, id, result, promptID, promptText)
	if err != nil {
		return fmt.Errorf("ошибка сохранения анализа показателя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AnalysisHistoryRepository: доступ к таблице analysis_history.
type AnalysisHistoryRepository interface {
	// Create добавляет запись истории, заполняет ID и AnalyzedAt.
	Create(ctx context.Context, h *model.AnalysisHistory) error
	// ListByUser возвращает последние записи пользователя.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error)
}

type analysisHistoryRepo struct {
	db DBTX
}

// NewAnalysisHistoryRepository создаёт репозиторий истории анализов.
func NewAnalysisHistoryRepository(db DBTX) AnalysisHistoryRepository {
	return &analysisHistoryRepo{db: db}
}

func (r *analysisHistoryRepo) Create(ctx context.Context, h *model.AnalysisHistory) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO analysis_history (indicator_ids, indicator_names, result,
			prompt_text, prompt_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, analyzed_at`,
		h.IndicatorIDs, h.IndicatorNames, h.Result, h.PromptText, h.PromptID, h.UserID,
	).Scan(&h.ID, &h.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения истории анализа: %w", err)
	}
	return nil
}

func (r *analysisHistoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, indicator_ids, indicator_names, result, prompt_text, prompt_id, user_id, analyzed_at
		FROM analysis_history
		WHERE user_id = $1
		ORDER BY analyzed_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории анализов: %w", err)
	}
	defer rows.Close()

	var result []*model.AnalysisHistory
	for rows.Next() {
		h := &model.AnalysisHistory{}
		if err := rows.Scan(&h.ID, &h.IndicatorIDs, &h.IndicatorNames, &h.Result,
			&h.PromptText, &h.PromptID, &h.UserID, &h.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории анализа: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// InferenceKeyRepository: доступ к таблице inference_keys.
type InferenceKeyRepository interface {
	// ActiveKey возвращает последний активный ключ API.
	// Если активных ключей нет, ErrNotFound.
	ActiveKey(ctx context.Context) (string, error)
}

type inferenceKeyRepo struct {
	db DBTX
}

// NewInferenceKeyRepository создаёт репозиторий ключей инференса.
func NewInferenceKeyRepository(db DBTX) InferenceKeyRepository {
	return &inferenceKeyRepo{db: db}
}

func (r *inferenceKeyRepo) ActiveKey(ctx context.Context) (string, error) {
	var key string
	err := r.db.QueryRow(ctx, `
		SELECT api_key FROM inference_keys
		WHERE active
		ORDER BY created_at DESC, id DESC
		LIMIT 1`).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения ключа API: %w", err)
	}
	return key, nil
}
