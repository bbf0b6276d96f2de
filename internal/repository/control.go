package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/docflow/internal/domain/model"
)

// ControlRepository: доступ к таблицам control_items и control_occurrences.
type ControlRepository interface {
	// CreateItem создаёт элемент контроля.
	CreateItem(ctx context.Context, item *model.ControlItem) error
	// GetItem возвращает элемент контроля по ID.
	GetItem(ctx context.Context, id int64) (*model.ControlItem, error)
	// LatestDueDate возвращает максимальный due_date сроков элемента.
	// Если сроков нет, nil, nil.
	LatestDueDate(ctx context.Context, itemID int64) (*time.Time, error)
	// InsertOccurrences вставляет сроки одним INSERT (всё или ничего)
	// и заполняет ID и CreatedAt.
	InsertOccurrences(ctx context.Context, occurrences []*model.ControlOccurrence) error
	// ListOccurrences возвращает сроки элемента по возрастанию due_date.
	ListOccurrences(ctx context.Context, itemID int64) ([]*model.ControlOccurrence, error)
	// MarkItemHasDocument выставляет has_document = true у элемента.
	MarkItemHasDocument(ctx context.Context, itemID int64) error
	// MarkOccurrenceHasDocument выставляет has_document = true у срока.
	MarkOccurrenceHasDocument(ctx context.Context, occurrenceID int64) error
}

type controlRepo struct {
	db DBTX
}

// NewControlRepository создаёт репозиторий элементов контроля.
func NewControlRepository(db DBTX) ControlRepository {
	return &controlRepo{db: db}
}

func (r *controlRepo) CreateItem(ctx context.Context, item *model.ControlItem) error {
	query := `
		INSERT INTO control_items (project_id, category_id, description, initial_due_date,
			recurrence, recurrence_interval, mandatory, has_document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		item.ProjectID, item.CategoryID, item.Description, item.InitialDueDate,
		item.Recurrence, item.RecurrenceInterval, item.Mandatory, item.HasDocument,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания элемента контроля: %w", err)
	}
	return nil
}

func (r *controlRepo) GetItem(ctx context.Context, id int64) (*model.ControlItem, error) {
	query := `
		SELECT id, project_id, category_id, description, initial_due_date,
			recurrence, recurrence_interval, mandatory, has_document, created_at
		FROM control_items
		WHERE id = $1`

	item := &model.ControlItem{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.ProjectID, &item.CategoryID, &item.Description, &item.InitialDueDate,
		&item.Recurrence, &item.RecurrenceInterval, &item.Mandatory, &item.HasDocument, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения элемента контроля: %w", err)
	}
	return item, nil
}

func (r *controlRepo) LatestDueDate(ctx context.Context, itemID int64) (*time.Time, error) {
	query := `
		SELECT due_date
		FROM control_occurrences
		WHERE control_item_id = $1
		ORDER BY due_date DESC
		LIMIT 1`

	var due time.Time
	err := r.db.QueryRow(ctx, query, itemID).Scan(&due)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения последнего срока: %w", err)
	}
	return &due, nil
}

// occurrenceColumns: количество параметров на одну строку INSERT.
const occurrenceColumns = 10

func (r *controlRepo) InsertOccurrences(ctx context.Context, occurrences []*model.ControlOccurrence) error {
	if len(occurrences) == 0 {
		return nil
	}

	values := make([]string, 0, len(occurrences))
	args := make([]any, 0, len(occurrences)*occurrenceColumns)
	for i, o := range occurrences {
		base := i * occurrenceColumns
		placeholders := make([]string, occurrenceColumns)
		for j := range occurrenceColumns {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			o.ControlItemID, o.ProjectID, o.CategoryID, o.Description, o.InitialDueDate,
			o.Recurrence, o.RecurrenceInterval, o.Mandatory, o.DueDate, o.HasDocument,
		)
	}

	// Порядок RETURNING совпадает с порядком VALUES для одного INSERT.
	query := `
		INSERT INTO control_occurrences (control_item_id, project_id, category_id, description,
			initial_due_date, recurrence, recurrence_interval, mandatory, due_date, has_document)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id, created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка вставки сроков: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(occurrences) {
			break
		}
		if err := rows.Scan(&occurrences[i].ID, &occurrences[i].CreatedAt); err != nil {
			return fmt.Errorf("ошибка сканирования вставленного срока: %w", err)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: элемент контроля не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка вставки сроков: %w", err)
	}
	return nil
}

func (r *controlRepo) ListOccurrences(ctx context.Context, itemID int64) ([]*model.ControlOccurrence, error) {
	query := `
		SELECT id, control_item_id, project_id, category_id, description, initial_due_date,
			recurrence, recurrence_interval, mandatory, due_date, has_document, created_at
		FROM control_occurrences
		WHERE control_item_id = $1
		ORDER BY due_date ASC, id ASC`

	rows, err := r.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сроков: %w", err)
	}
	defer rows.Close()

	var result []*model.ControlOccurrence
	for rows.Next() {
		o := &model.ControlOccurrence{}
		if err := rows.Scan(
			&o.ID, &o.ControlItemID, &o.ProjectID, &o.CategoryID, &o.Description, &o.InitialDueDate,
			&o.Recurrence, &o.RecurrenceInterval, &o.Mandatory, &o.DueDate, &o.HasDocument, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования срока: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *controlRepo) MarkItemHasDocument(ctx context.Context, itemID int64) error {
	return r.markHasDocument(ctx, "control_items", itemID)
}

func (r *controlRepo) MarkOccurrenceHasDocument(ctx context.Context, occurrenceID int64) error {
	return r.markHasDocument(ctx, "control_occurrences", occurrenceID)
}

// markHasDocument: table задаётся только константами выше.
func (r *controlRepo) markHasDocument(ctx context.Context, table string, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE `+table+` SET has_document = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления %s.has_document: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
