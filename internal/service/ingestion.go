// ingestion.go: конвейер загрузки документов.
//
// Шаги: валидация → извлечение текста → запись в хранилище →
// запись метаданных → [привязка к срокам] → [анализ ИИ].
// Привязка и анализ выполняются best-effort: их ошибки становятся
// предупреждениями в результате и не прерывают загрузку.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/docflow/internal/blobstore"
	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/repository"
)

const (
	// MaxUploadBytes: максимальный размер загружаемого файла (10 MiB).
	MaxUploadBytes = 10 << 20
	// MaxContentChars: максимальная длина сохраняемого текста в символах.
	MaxContentChars = 100000
)

// pdfMagic: сигнатура в начале любого PDF-файла.
var pdfMagic = []byte("%PDF-")

// Шаги конвейера, для которых возможны предупреждения.
const (
	StepExtract  = "extract"
	StepLink     = "link"
	StepAnalysis = "analysis"
)

// StepOutcome: итог best-effort шага.
type StepOutcome string

const (
	OutcomeSkipped StepOutcome = "skipped"
	OutcomeDone    StepOutcome = "done"
	OutcomeFailed  StepOutcome = "failed"
)

// TextExtractor: извлечение текста из файла.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// BlobStore: файловое хранилище.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, meta blobstore.Metadata) (*blobstore.Object, error)
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, bool)
}

// Generator: генеративная модель.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// UploadRequest: входные данные загрузки.
type UploadRequest struct {
	Filename      string
	Data          []byte
	CategoryID    *int64
	ProjectID     *int64
	Description   string
	ControlItemID *int64
	OccurrenceID  *int64
}

// Warning: предупреждение best-effort шага.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// IngestionResult: результат загрузки.
type IngestionResult struct {
	Document          *model.Document
	TemporaryURL      bool
	Linked            StepOutcome
	Analyzed          StepOutcome
	AnalysisPerformed bool
	Analysis          *string
	PromptSource      string
	Warnings          []Warning
}

// IngestionPipeline: конвейер загрузки документов.
type IngestionPipeline struct {
	extractor TextExtractor
	blobs     BlobStore
	documents repository.DocumentRepository
	controls  repository.ControlRepository
	prompts   *PromptResolver
	generator Generator
	now       func() time.Time
	logger    *slog.Logger
}

// NewIngestionPipeline создаёт конвейер загрузки.
func NewIngestionPipeline(
	extractor TextExtractor,
	blobs BlobStore,
	documents repository.DocumentRepository,
	controls repository.ControlRepository,
	prompts *PromptResolver,
	generator Generator,
	logger *slog.Logger,
) *IngestionPipeline {
	return &IngestionPipeline{
		extractor: extractor,
		blobs:     blobs,
		documents: documents,
		controls:  controls,
		prompts:   prompts,
		generator: generator,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "ingestion")),
	}
}

// Ingest выполняет загрузку документа.
// Ошибки: ErrValidation (до любых внешних вызовов), ErrStorage, ErrPersistence.
func (p *IngestionPipeline) Ingest(ctx context.Context, req UploadRequest) (*IngestionResult, error) {
	if err := validateUpload(req); err != nil {
		documentsIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	result := &IngestionResult{Linked: OutcomeSkipped, Analyzed: OutcomeSkipped}
	log := p.logger.With(slog.String("filename", req.Filename))

	text, err := p.extractor.ExtractText(ctx, req.Data)
	if err != nil {
		log.Warn("Не удалось извлечь текст", slog.String("error", err.Error()))
		result.warn(StepExtract, "текст не извлечён: "+err.Error())
		text = ""
	}
	text = sanitizeText(text)

	now := p.now().UTC()
	key := blobstore.ObjectKey(req.Filename, now)
	obj, err := p.blobs.Put(ctx, key, req.Data, model.ContentTypePDF, blobMetadata(req))
	if err != nil {
		documentsIngestedTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err) //nolint:errorlint // намеренный двойной wrap
	}
	result.TemporaryURL = obj.Temporary

	doc := &model.Document{
		Filename:      req.Filename,
		ContentType:   model.ContentTypePDF,
		SizeBytes:     int64(len(req.Data)),
		BlobKey:       obj.Key,
		DownloadURL:   obj.URL,
		CategoryID:    *req.CategoryID,
		ProjectID:     *req.ProjectID,
		Content:       truncateRunes(text, MaxContentChars),
		ControlItemID: req.ControlItemID,
		UploadedAt:    now,
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		doc.Description = &d
	}

	if err := p.documents.Create(ctx, doc); err != nil {
		documentsIngestedTotal.WithLabelValues("persistence_error").Inc()
		log.Error("Файл записан в хранилище, но метаданные не сохранены",
			slog.String("blob_key", obj.Key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err) //nolint:errorlint // намеренный двойной wrap
	}
	result.Document = doc
	log = log.With(slog.Int64("document_id", doc.ID))

	p.link(ctx, log, doc, req, result)

	if doc.Content != "" {
		p.analyze(ctx, log, doc, result)
	}

	documentsIngestedTotal.WithLabelValues("completed").Inc()
	log.Info("Документ загружен",
		slog.Int64("size", doc.SizeBytes),
		slog.String("linked", string(result.Linked)),
		slog.Bool("analysis_performed", result.AnalysisPerformed),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// link привязывает документ к сроку и/или элементу контроля.
func (p *IngestionPipeline) link(ctx context.Context, log *slog.Logger, doc *model.Document, req UploadRequest, result *IngestionResult) {
	if req.OccurrenceID == nil && req.ControlItemID == nil {
		return
	}
	result.Linked = OutcomeDone

	fail := func(msg string, err error) {
		result.Linked = OutcomeFailed
		log.Warn(msg, slog.String("error", err.Error()))
		result.warn(StepLink, msg+": "+err.Error())
	}

	if req.OccurrenceID != nil {
		occID := *req.OccurrenceID
		if err := p.documents.LinkOccurrence(ctx, doc.ID, occID); err != nil {
			fail(fmt.Sprintf("связь со сроком %d не создана", occID), err)
		} else if err := p.controls.MarkOccurrenceHasDocument(ctx, occID); err != nil {
			fail(fmt.Sprintf("срок %d не отмечен", occID), err)
		}
	}

	if req.ControlItemID != nil {
		if err := p.controls.MarkItemHasDocument(ctx, *req.ControlItemID); err != nil {
			fail(fmt.Sprintf("элемент контроля %d не отмечен", *req.ControlItemID), err)
		}
	}
}

// analyze запускает анализ извлечённого текста и сохраняет результат.
func (p *IngestionPipeline) analyze(ctx context.Context, log *slog.Logger, doc *model.Document, result *IngestionResult) {
	prompt := p.prompts.Resolve(ctx, &doc.CategoryID, "")
	result.PromptSource = prompt.Source

	text, err := generate(ctx, p.generator, "ingestion", prompt.Text, doc.Content)
	if err != nil {
		result.Analyzed = OutcomeFailed
		log.Warn("Анализ не выполнен", slog.String("error", err.Error()))
		result.warn(StepAnalysis, err.Error())
		return
	}

	if err := p.documents.SetAnalysisResult(ctx, doc.ID, text); err != nil {
		result.Analyzed = OutcomeFailed
		log.Warn("Результат анализа не сохранён", slog.String("error", err.Error()))
		result.warn(StepAnalysis, "результат не сохранён: "+err.Error())
		return
	}

	doc.AnalysisResult = &text
	result.Analysis = &text
	result.AnalysisPerformed = true
	result.Analyzed = OutcomeDone
}

func (r *IngestionResult) warn(step, msg string) {
	ingestionWarningsTotal.WithLabelValues(step).Inc()
	r.Warnings = append(r.Warnings, Warning{Step: step, Message: msg})
}

func validateUpload(req UploadRequest) error {
	var problems []string
	if strings.TrimSpace(req.Filename) == "" || len(req.Data) == 0 {
		problems = append(problems, "файл не передан")
	}
	if req.CategoryID == nil {
		problems = append(problems, "не указан category_id")
	}
	if req.ProjectID == nil {
		problems = append(problems, "не указан project_id")
	}
	if len(req.Data) > 0 && !bytes.HasPrefix(req.Data, pdfMagic) {
		problems = append(problems, "файл не является PDF")
	}
	if len(req.Data) > MaxUploadBytes {
		problems = append(problems, fmt.Sprintf("размер файла превышает %d МБ", MaxUploadBytes>>20))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// blobMetadata формирует атрибуты объекта. Значения экранируются,
// т.к. B2 передаёт их в HTTP-заголовках.
func blobMetadata(req UploadRequest) blobstore.Metadata {
	meta := blobstore.Metadata{
		"category_id": strconv.FormatInt(*req.CategoryID, 10),
		"project_id":  strconv.FormatInt(*req.ProjectID, 10),
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		meta["description"] = url.QueryEscape(d)
	}
	return meta
}

// sanitizeText удаляет невалидные последовательности UTF-8 и NUL-байты:
// PostgreSQL не принимает их в TEXT.
func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

// truncateRunes обрезает строку до n символов.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// isNotFound проверяет ErrNotFound репозитория.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
