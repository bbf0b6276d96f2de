package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/docflow/internal/domain/model"
)

// DocumentRepository: доступ к таблицам documents и document_occurrence_links.
type DocumentRepository interface {
	// Create вставляет метаданные документа, заполняет ID и CreatedAt.
	Create(ctx context.Context, d *model.Document) error
	// GetByID возвращает документ по ID.
	GetByID(ctx context.Context, id int64) (*model.Document, error)
	// ListWithLinks возвращает документы со связанными сроками, новые первыми.
	ListWithLinks(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, error)
	// Count возвращает общее количество документов.
	Count(ctx context.Context) (int, error)
	// SetAnalysisResult сохраняет результат анализа ИИ.
	SetAnalysisResult(ctx context.Context, id int64, result string) error
	// LinkOccurrence создаёт связь документа со сроком общего контроля.
	LinkOccurrence(ctx context.Context, documentID, occurrenceID int64) error
}

type documentRepo struct {
	db DBTX
}

// NewDocumentRepository создаёт репозиторий документов.
func NewDocumentRepository(db DBTX) DocumentRepository {
	return &documentRepo{db: db}
}

const documentColumns = `d.id, d.filename, d.content_type, d.size_bytes, d.blob_key, d.download_url,
	d.category_id, d.project_id, d.description, d.content, d.analysis_result,
	d.control_item_id, d.uploaded_at, d.created_at`

func scanDocument(row pgx.Row, d *model.Document, extra ...any) error {
	dest := []any{
		&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.BlobKey, &d.DownloadURL,
		&d.CategoryID, &d.ProjectID, &d.Description, &d.Content, &d.AnalysisResult,
		&d.ControlItemID, &d.UploadedAt, &d.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *documentRepo) Create(ctx context.Context, d *model.Document) error {
	query := `
		INSERT INTO documents (filename, content_type, size_bytes, blob_key, download_url,
			category_id, project_id, description, content, analysis_result,
			control_item_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		d.Filename, d.ContentType, d.SizeBytes, d.BlobKey, d.DownloadURL,
		d.CategoryID, d.ProjectID, d.Description, d.Content, d.AnalysisResult,
		d.ControlItemID, d.UploadedAt,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: документ с таким ключом уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения документа: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = $1`

	d := &model.Document{}
	if err := scanDocument(r.db.QueryRow(ctx, query, id), d); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения документа: %w", err)
	}
	return d, nil
}

func (r *documentRepo) ListWithLinks(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, error) {
	query := `
		SELECT ` + documentColumns + `,
			COALESCE(
				(SELECT array_agg(l.occurrence_id ORDER BY l.occurrence_id)
				 FROM document_occurrence_links l WHERE l.document_id = d.id),
				'{}'::BIGINT[]
			)
		FROM documents d
		ORDER BY d.uploaded_at DESC, d.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка документов: %w", err)
	}
	defer rows.Close()

	var result []*model.DocumentWithLinks
	for rows.Next() {
		d := &model.DocumentWithLinks{}
		if err := scanDocument(rows, &d.Document, &d.LinkedOccurrenceIDs); err != nil {
			return nil, fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *documentRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта документов: %w", err)
	}
	return n, nil
}

func (r *documentRepo) SetAnalysisResult(ctx context.Context, id int64, result string) error {
	tag, err := r.db.Exec(ctx, `UPDATE documents SET analysis_result = $2 WHERE id = $1`, id, result)
	if err != nil {
		return fmt.Errorf("ошибка сохранения результата анализа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *documentRepo) LinkOccurrence(ctx context.Context, documentID, occurrenceID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_occurrence_links (document_id, occurrence_id) VALUES ($1, $2)`,
		documentID, occurrenceID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: связь уже существует", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: срок общего контроля %d не существует", ErrNotFound, occurrenceID)
		}
		return fmt.Errorf("ошибка создания связи документа: %w", err)
	}
	return nil
}
