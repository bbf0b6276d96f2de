// documents.go: обработчики /api/v1/documents endpoints.
// Загрузка (multipart), список со связанными сроками, получение,
// ссылка на скачивание, повторный анализ.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/service"
)

// multipartOverhead: запас на границы и текстовые поля формы.
const multipartOverhead = 1 << 20

type documentResponse struct {
	ID                  int64   `json:"id"`
	Filename            string  `json:"filename"`
	ContentType         string  `json:"content_type"`
	SizeBytes           int64   `json:"size_bytes"`
	BlobKey             string  `json:"blob_key"`
	DownloadURL         string  `json:"download_url"`
	CategoryID          int64   `json:"category_id"`
	ProjectID           int64   `json:"project_id"`
	Description         *string `json:"description,omitempty"`
	ControlItemID       *int64  `json:"control_item_id,omitempty"`
	AnalysisResult      *string `json:"analysis_result,omitempty"`
	Content             string  `json:"content,omitempty"`
	UploadedAt          string  `json:"uploaded_at"`
	LinkedOccurrenceIDs []int64 `json:"linked_occurrence_ids,omitempty"`
}

type uploadResponse struct {
	Success           bool              `json:"success"`
	Document          documentResponse  `json:"document"`
	TemporaryURL      bool              `json:"temporary_url"`
	Linked            string            `json:"linked"`
	AnalysisPerformed bool              `json:"analysis_performed"`
	Analysis          *string           `json:"analysis,omitempty"`
	PromptSource      string            `json:"prompt_source,omitempty"`
	Warnings          []service.Warning `json:"warnings"`
}

type documentListResponse struct {
	Success bool               `json:"success"`
	Items   []documentResponse `json:"items"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"has_more"`
}

type downloadURLResponse struct {
	Success   bool    `json:"success"`
	URL       string  `json:"url"`
	Temporary bool    `json:"temporary"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// UploadDocument: POST /api/v1/documents.
// multipart/form-data: file, category_id, project_id, description,
// control_item_id, occurrence_id.
func (h *APIHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(service.MaxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.ValidationError(w, fmt.Sprintf("размер файла превышает %d МБ", service.MaxUploadBytes>>20))
			return
		}
		apierrors.ValidationError(w, "Некорректная форма: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := service.UploadRequest{Description: r.FormValue("description")}
	var err error
	for _, f := range []struct {
		name string
		dst  **int64
	}{
		{"category_id", &req.CategoryID},
		{"project_id", &req.ProjectID},
		{"control_item_id", &req.ControlItemID},
		{"occurrence_id", &req.OccurrenceID},
	} {
		if *f.dst, err = formInt(r, f.name); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// пустой файл отклонит валидация сервиса
	case err != nil:
		apierrors.ValidationError(w, "Некорректный файл: "+err.Error())
		return
	default:
		defer file.Close()
		if !acceptedPartType(header.Header.Get("Content-Type")) {
			apierrors.ValidationError(w, "Допускаются только PDF-файлы")
			return
		}
		req.Filename = header.Filename
		// Читаем на байт больше лимита, чтобы сервис отклонил превышение.
		req.Data, err = io.ReadAll(io.LimitReader(file, service.MaxUploadBytes+1))
		if err != nil {
			apierrors.ValidationError(w, "Ошибка чтения файла: "+err.Error())
			return
		}
	}

	res, err := h.ingestion.Ingest(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка загрузки документа")
		return
	}

	resp := uploadResponse{
		Success:           true,
		Document:          mapDocument(res.Document),
		TemporaryURL:      res.TemporaryURL,
		Linked:            string(res.Linked),
		AnalysisPerformed: res.AnalysisPerformed,
		Analysis:          res.Analysis,
		PromptSource:      res.PromptSource,
		Warnings:          res.Warnings,
	}
	if resp.Warnings == nil {
		resp.Warnings = []service.Warning{}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// acceptedPartType: тип части формы с файлом. Браузеры и curl без явного
// типа присылают application/octet-stream; содержимое проверяет сервис.
func acceptedPartType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == model.ContentTypePDF || mediaType == "application/octet-stream"
}

// ListDocuments: GET /api/v1/documents.
// Каждый документ содержит все связанные сроки общего контроля.
func (h *APIHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limitParam, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	offsetParam, err := queryInt(r, "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, offset := paginationDefaults(limitParam, offsetParam)

	docs, total, err := h.documents.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка документов")
		return
	}

	items := make([]documentResponse, len(docs))
	for i, d := range docs {
		items[i] = mapDocument(&d.Document)
		items[i].LinkedOccurrenceIDs = d.LinkedOccurrenceIDs
	}

	writeJSON(w, http.StatusOK, documentListResponse{
		Success: true,
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetDocument: GET /api/v1/documents/{id}.
func (h *APIHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения документа")
		return
	}

	resp := mapDocument(doc)
	resp.Content = doc.Content
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": resp})
}

// GetDownloadURL: GET /api/v1/documents/{id}/download-url.
// Временная ссылка, при ошибке выдачи токена: постоянная.
func (h *APIHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	link, err := h.documents.DownloadURL(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения ссылки на скачивание")
		return
	}

	resp := downloadURLResponse{Success: true, URL: link.URL, Temporary: link.Temporary}
	if link.ExpiresAt != nil {
		exp := link.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// AnalyzeDocument: POST /api/v1/documents/{id}/analysis.
// Тело необязательно: {"prompt_id": "..."}.
func (h *APIHandler) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var req struct {
		PromptID string `json:"prompt_id"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	res, err := h.analysis.AnalyzeDocument(r.Context(), id, req.PromptID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка анализа документа")
		return
	}
	writeJSON(w, http.StatusOK, mapAnalysis(res))
}

func mapDocument(d *model.Document) documentResponse {
	return documentResponse{
		ID:             d.ID,
		Filename:       d.Filename,
		ContentType:    d.ContentType,
		SizeBytes:      d.SizeBytes,
		BlobKey:        d.BlobKey,
		DownloadURL:    d.DownloadURL,
		CategoryID:     d.CategoryID,
		ProjectID:      d.ProjectID,
		Description:    d.Description,
		ControlItemID:  d.ControlItemID,
		AnalysisResult: d.AnalysisResult,
		UploadedAt:     d.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// formInt разбирает необязательное числовое поле формы.
func formInt(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный %s: %q", name, raw)
	}
	return &v, nil
}
