// documents.go: чтение загруженных документов и выдача ссылок на скачивание.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/repository"
)

// DownloadLink: ссылка на скачивание документа.
type DownloadLink struct {
	URL       string
	Temporary bool
	// ExpiresAt: время истечения временной ссылки (nil для постоянной)
	ExpiresAt *time.Time
}

// DocumentService: чтение документов.
type DocumentService struct {
	documents repository.DocumentRepository
	blobs     BlobStore
	urlTTL    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewDocumentService создаёт сервис документов.
func NewDocumentService(documents repository.DocumentRepository, blobs BlobStore, urlTTL time.Duration, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		documents: documents,
		blobs:     blobs,
		urlTTL:    urlTTL,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "documents")),
	}
}

// List возвращает страницу документов со связанными сроками и общее количество.
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, int, error) {
	items, err := s.documents.ListWithLinks(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	total, err := s.documents.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	return items, total, nil
}

// Get возвращает документ по ID.
func (s *DocumentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: документ %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	return doc, nil
}

// DownloadURL выдаёт новую ссылку на скачивание документа.
func (s *DocumentService) DownloadURL(ctx context.Context, id int64) (*DownloadLink, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	u, temporary := s.blobs.DownloadURL(ctx, doc.BlobKey, s.urlTTL)
	link := &DownloadLink{URL: u, Temporary: temporary}
	if temporary {
		exp := s.now().UTC().Add(s.urlTTL)
		link.ExpiresAt = &exp
	}

	s.logger.Debug("Выдана ссылка на скачивание",
		slog.Int64("document_id", id),
		slog.Bool("temporary", temporary),
	)
	return link, nil
}
