package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/service"
)

// multipartUpload собирает multipart-запрос загрузки документа.
func multipartUpload(t *testing.T, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func ingestedResult(req service.UploadRequest) *service.IngestionResult {
	analysis := "Resumo"
	return &service.IngestionResult{
		Document: &model.Document{
			ID:          100,
			Filename:    req.Filename,
			ContentType: model.ContentTypePDF,
			SizeBytes:   int64(len(req.Data)),
			BlobKey:     "k_1_" + req.Filename,
			CategoryID:  *req.CategoryID,
			ProjectID:   *req.ProjectID,
			UploadedAt:  time.Now(),
		},
		TemporaryURL:      true,
		Linked:            service.OutcomeSkipped,
		Analyzed:          service.OutcomeDone,
		AnalysisPerformed: true,
		Analysis:          &analysis,
		PromptSource:      service.PromptSourceCategory,
	}
}

func TestUploadDocument(t *testing.T) {
	ing := &mockIngestor{fn: func(_ context.Context, req service.UploadRequest) (*service.IngestionResult, error) {
		return ingestedResult(req), nil
	}}
	h := newTestHandler(testDeps{ingestor: ing})

	req := multipartUpload(t, map[string]string{
		"category_id":     "3",
		"project_id":      "2",
		"description":     "Contrato",
		"occurrence_id":   "11",
		"control_item_id": "",
	}, "contrato.pdf", []byte("%PDF-1.4"))
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}
	if ing.req.Filename != "contrato.pdf" || string(ing.req.Data) != "%PDF-1.4" ||
		*ing.req.CategoryID != 3 || *ing.req.ProjectID != 2 || *ing.req.OccurrenceID != 11 ||
		ing.req.ControlItemID != nil || ing.req.Description != "Contrato" {
		t.Errorf("запрос к сервису = %+v", ing.req)
	}

	body := decodeBody(t, rec)
	if body["success"] != true || body["analysis_performed"] != true || body["analysis"] != "Resumo" {
		t.Errorf("ответ = %v", body)
	}
	if w, ok := body["warnings"].([]any); !ok || len(w) != 0 {
		t.Errorf("warnings должен быть пустым массивом, получено %v", body["warnings"])
	}
	doc := body["document"].(map[string]any)
	if doc["id"] != float64(100) || doc["content_type"] != "application/pdf" {
		t.Errorf("document = %v", doc)
	}
}

func TestUploadDocument_OversizedBody(t *testing.T) {
	ing := &mockIngestor{}
	h := newTestHandler(testDeps{ingestor: ing})

	req := multipartUpload(t, map[string]string{"category_id": "3", "project_id": "2"},
		"big.pdf", bytes.Repeat([]byte("x"), service.MaxUploadBytes+multipartOverhead+1))
	rec := httptest.NewRecorder()
	h.UploadDocument(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400", rec.Code)
	}
	if ing.calls != 0 {
		t.Error("сервис не должен вызываться")
	}
}

func TestUploadDocument_PartContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantStatus  int
	}{
		{"application/pdf", http.StatusCreated},
		{"application/octet-stream", http.StatusCreated},
		{"image/png", http.StatusBadRequest},
		{"text/plain; charset=utf-8", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			ing := &mockIngestor{fn: func(_ context.Context, req service.UploadRequest) (*service.IngestionResult, error) {
				return ingestedResult(req), nil
			}}
			h := newTestHandler(testDeps{ingestor: ing})

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			_ = mw.WriteField("category_id", "3")
			_ = mw.WriteField("project_id", "2")
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Disposition": {`form-data; name="file"; filename="arquivo.pdf"`},
				"Content-Type":        {tt.contentType},
			})
			if err != nil {
				t.Fatal(err)
			}
			_, _ = part.Write([]byte("%PDF-1.4"))
			_ = mw.Close()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := httptest.NewRecorder()
			h.UploadDocument(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadRequest && ing.calls != 0 {
				t.Error("сервис не должен вызываться для не-PDF")
			}
		})
	}
}

func TestUploadDocument_BadNumericField(t *testing.T) {
	ing := &mockIngestor{}
	rec := httptest.NewRecorder()
	newTestHandler(testDeps{ingestor: ing}).UploadDocument(rec,
		multipartUpload(t, map[string]string{"category_id": "abc", "project_id": "2"}, "a.pdf", []byte("x")))

	if rec.Code != http.StatusBadRequest || ing.calls != 0 {
		t.Errorf("статус = %d, вызовов = %d", rec.Code, ing.calls)
	}
}

func TestUploadDocument_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"валидация", fmt.Errorf("%w: не указан project_id", service.ErrValidation), http.StatusBadRequest},
		{"хранилище", fmt.Errorf("%w: 503", service.ErrStorage), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &mockIngestor{fn: func(context.Context, service.UploadRequest) (*service.IngestionResult, error) {
				return nil, tt.err
			}}
			rec := httptest.NewRecorder()
			newTestHandler(testDeps{ingestor: ing}).UploadDocument(rec,
				multipartUpload(t, map[string]string{"category_id": "3"}, "a.pdf", []byte("x")))
			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestUploadDocument_MissingFilePassedToService(t *testing.T) {
	ing := &mockIngestor{fn: func(_ context.Context, req service.UploadRequest) (*service.IngestionResult, error) {
		if req.Filename != "" || req.Data != nil {
			t.Errorf("без файла ожидается пустой запрос, получено %q", req.Filename)
		}
		return nil, fmt.Errorf("%w: файл не передан", service.ErrValidation)
	}}
	rec := httptest.NewRecorder()
	newTestHandler(testDeps{ingestor: ing}).UploadDocument(rec,
		multipartUpload(t, map[string]string{"category_id": "3", "project_id": "2"}, "", nil))
	if rec.Code != http.StatusBadRequest || ing.calls != 1 {
		t.Errorf("статус = %d, вызовов = %d", rec.Code, ing.calls)
	}
}

func TestListDocuments(t *testing.T) {
	docs := &mockDocuments{listFn: func(_ context.Context, limit, offset int) ([]*model.DocumentWithLinks, int, error) {
		if limit != 2 || offset != 0 {
			t.Errorf("limit/offset = %d/%d", limit, offset)
		}
		return []*model.DocumentWithLinks{
			{Document: model.Document{ID: 1}, LinkedOccurrenceIDs: []int64{4, 5}},
			{Document: model.Document{ID: 2}},
		}, 3, nil
	}}
	rec := httptest.NewRecorder()
	newTestHandler(testDeps{documents: docs}).ListDocuments(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	items := body["items"].([]any)
	if len(items) != 2 || body["total"] != float64(3) || body["has_more"] != true {
		t.Errorf("ответ = %v", body)
	}
	links := items[0].(map[string]any)["linked_occurrence_ids"].([]any)
	if len(links) != 2 {
		t.Errorf("все связанные сроки должны возвращаться: %v", links)
	}
}

func TestListDocuments_BadLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(testDeps{}).ListDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	docs := &mockDocuments{getFn: func(_ context.Context, id int64) (*model.Document, error) {
		if id != 42 {
			return nil, fmt.Errorf("%w: документ %d", service.ErrNotFound, id)
		}
		return &model.Document{ID: 42, Content: "texto"}, nil
	}}
	h := newTestHandler(testDeps{documents: docs})

	rec := serve(t, http.MethodGet, "/api/v1/documents/{id}", h.GetDocument,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/42", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if doc := decodeBody(t, rec)["document"].(map[string]any); doc["content"] != "texto" {
		t.Errorf("document = %v", doc)
	}

	rec = serve(t, http.MethodGet, "/api/v1/documents/{id}", h.GetDocument,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/7", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидается 404", rec.Code)
	}

	rec = serve(t, http.MethodGet, "/api/v1/documents/{id}", h.GetDocument,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400", rec.Code)
	}
}

func TestGetDownloadURL(t *testing.T) {
	exp := time.Date(2025, time.May, 1, 12, 10, 0, 0, time.UTC)
	docs := &mockDocuments{urlFn: func(context.Context, int64) (*service.DownloadLink, error) {
		return &service.DownloadLink{URL: "https://b2.test/x?Authorization=t", Temporary: true, ExpiresAt: &exp}, nil
	}}
	h := newTestHandler(testDeps{documents: docs})

	rec := serve(t, http.MethodGet, "/api/v1/documents/{id}/download-url", h.GetDownloadURL,
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/1/download-url", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["temporary"] != true || body["expires_at"] != "2025-05-01T12:10:00Z" {
		t.Errorf("ответ = %v", body)
	}
}

func TestAnalyzeDocument_EmptyBody(t *testing.T) {
	var gotPrompt string
	an := &mockAnalyzer{documentFn: func(_ context.Context, id int64, promptID string) (*service.AnalysisResult, error) {
		gotPrompt = promptID
		return &service.AnalysisResult{Result: "ok", PromptSource: service.PromptSourceBuiltin}, nil
	}}
	h := newTestHandler(testDeps{analyzer: an})

	rec := serve(t, http.MethodPost, "/api/v1/documents/{id}/analysis", h.AnalyzeDocument,
		httptest.NewRequest(http.MethodPost, "/api/v1/documents/5/analysis", nil))
	if rec.Code != http.StatusOK || gotPrompt != "" {
		t.Errorf("статус = %d, prompt = %q", rec.Code, gotPrompt)
	}
}

func TestAnalyzeDocument_NoText(t *testing.T) {
	an := &mockAnalyzer{documentFn: func(context.Context, int64, string) (*service.AnalysisResult, error) {
		return nil, fmt.Errorf("%w: нет текста", service.ErrValidation)
	}}
	h := newTestHandler(testDeps{analyzer: an})
	rec := serve(t, http.MethodPost, "/api/v1/documents/{id}/analysis", h.AnalyzeDocument,
		jsonRequest(http.MethodPost, "/api/v1/documents/5/analysis", `{"prompt_id": "p"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидается 400", rec.Code)
	}
}
