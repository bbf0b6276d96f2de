package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/docflow/internal/domain/model"
)

// PromptRepository: доступ к таблицам prompts, indicator_prompts и categories.
type PromptRepository interface {
	// GetByID ищет промпт в основной таблице prompts.
	GetByID(ctx context.Context, id string) (*model.Prompt, error)
	// GetIndicatorPromptByID ищет промпт в устаревшей таблице indicator_prompts.
	GetIndicatorPromptByID(ctx context.Context, id string) (*model.Prompt, error)
	// GetDefault возвращает промпт с is_default = true.
	GetDefault(ctx context.Context) (*model.Prompt, error)
	// GetCategoryPrompt возвращает промпт, привязанный к категории.
	GetCategoryPrompt(ctx context.Context, categoryID int64) (*model.Prompt, error)
	// List возвращает все промпты основной таблицы по имени.
	List(ctx context.Context) ([]*model.Prompt, error)
	// Create создаёт промпт в основной таблице.
	Create(ctx context.Context, p *model.Prompt) error
}

type promptRepo struct {
	db DBTX
}

// NewPromptRepository создаёт репозиторий промптов.
func NewPromptRepository(db DBTX) PromptRepository {
	return &promptRepo{db: db}
}

func (r *promptRepo) GetByID(ctx context.Context, id string) (*model.Prompt, error) {
	return r.getOne(ctx, `
		SELECT id::text, name, prompt_text, is_default, created_at
		FROM prompts WHERE id = $1`, id)
}

func (r *promptRepo) GetIndicatorPromptByID(ctx context.Context, id string) (*model.Prompt, error) {
	return r.getOne(ctx, `
		SELECT id::text, name, prompt_text, FALSE, created_at
		FROM indicator_prompts WHERE id = $1`, id)
}

func (r *promptRepo) GetDefault(ctx context.Context) (*model.Prompt, error) {
	p := &model.Prompt{}
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, prompt_text, is_default, created_at
		FROM prompts WHERE is_default
		ORDER BY created_at DESC
		LIMIT 1`).Scan(&p.ID, &p.Name, &p.Text, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения промпта по умолчанию: %w", err)
	}
	return p, nil
}

func (r *promptRepo) GetCategoryPrompt(ctx context.Context, categoryID int64) (*model.Prompt, error) {
	p := &model.Prompt{}
	err := r.db.QueryRow(ctx, `
		SELECT p.id::text, p.name, p.prompt_text, p.is_default, p.created_at
		FROM categories c
		JOIN prompts p ON p.id = c.prompt_id
		WHERE c.id = $1`, categoryID).Scan(&p.ID, &p.Name, &p.Text, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения промпта категории: %w", err)
	}
	return p, nil
}

func (r *promptRepo) List(ctx context.Context) ([]*model.Prompt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, prompt_text, is_default, created_at
		FROM prompts
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка промптов: %w", err)
	}
	defer rows.Close()

	var result []*model.Prompt
	for rows.Next() {
		p := &model.Prompt{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Text, &p.IsDefault, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования промпта: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *promptRepo) Create(ctx context.Context, p *model.Prompt) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO prompts (name, prompt_text, is_default)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at`,
		p.Name, p.Text, p.IsDefault,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: промпт по умолчанию уже задан", ErrConflict)
		}
		return fmt.Errorf("ошибка создания промпта: %w", err)
	}
	return nil
}

// getOne выполняет выборку одного промпта по UUID.
// Строка, не являющаяся UUID, трактуется как отсутствующая запись.
func (r *promptRepo) getOne(ctx context.Context, query, id string) (*model.Prompt, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	p := &model.Prompt{}
	err = r.db.QueryRow(ctx, query, parsed.String()).Scan(&p.ID, &p.Name, &p.Text, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения промпта: %w", err)
	}
	return p, nil
}
