package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/docflow/internal/api/middleware"
	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/domain/useragent"
	"github.com/bigkaa/docflow/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type mockReplicator struct {
	fn func(ctx context.Context, itemID int64, reps int) (*service.ReplicationResult, error)
}

func (m *mockReplicator) Replicate(ctx context.Context, itemID int64, reps int) (*service.ReplicationResult, error) {
	return m.fn(ctx, itemID, reps)
}

type mockIngestor struct {
	fn    func(ctx context.Context, req service.UploadRequest) (*service.IngestionResult, error)
	calls int
	req   service.UploadRequest
}

func (m *mockIngestor) Ingest(ctx context.Context, req service.UploadRequest) (*service.IngestionResult, error) {
	m.calls++
	m.req = req
	return m.fn(ctx, req)
}

type mockDocuments struct {
	listFn func(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, int, error)
	getFn  func(ctx context.Context, id int64) (*model.Document, error)
	urlFn  func(ctx context.Context, id int64) (*service.DownloadLink, error)
}

func (m *mockDocuments) List(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, int, error) {
	return m.listFn(ctx, limit, offset)
}

func (m *mockDocuments) Get(ctx context.Context, id int64) (*model.Document, error) {
	return m.getFn(ctx, id)
}

func (m *mockDocuments) DownloadURL(ctx context.Context, id int64) (*service.DownloadLink, error) {
	return m.urlFn(ctx, id)
}

type mockAnalyzer struct {
	textFn       func(ctx context.Context, promptID string, categoryID *int64, text string) (*service.AnalysisResult, error)
	indicatorsFn func(ctx context.Context, userID, promptID, text string, inds []service.IndicatorRef) (*service.IndicatorsAnalysisResult, error)
	historyFn    func(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error)
	documentFn   func(ctx context.Context, documentID int64, promptID string) (*service.AnalysisResult, error)
	indicatorFn  func(ctx context.Context, indicatorID int64, promptID, text string) (*service.IndicatorAnalysisResult, error)
}

func (m *mockAnalyzer) AnalyzeText(ctx context.Context, promptID string, categoryID *int64, text string) (*service.AnalysisResult, error) {
	return m.textFn(ctx, promptID, categoryID, text)
}

func (m *mockAnalyzer) AnalyzeIndicators(ctx context.Context, userID, promptID, text string, inds []service.IndicatorRef) (*service.IndicatorsAnalysisResult, error) {
	return m.indicatorsFn(ctx, userID, promptID, text, inds)
}

func (m *mockAnalyzer) History(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error) {
	return m.historyFn(ctx, userID, limit)
}

func (m *mockAnalyzer) AnalyzeDocument(ctx context.Context, documentID int64, promptID string) (*service.AnalysisResult, error) {
	return m.documentFn(ctx, documentID, promptID)
}

func (m *mockAnalyzer) AnalyzeIndicator(ctx context.Context, indicatorID int64, promptID, text string) (*service.IndicatorAnalysisResult, error) {
	return m.indicatorFn(ctx, indicatorID, promptID, text)
}

type mockPrompts struct {
	items []*model.Prompt
	err   error
}

func (m *mockPrompts) ListPrompts(context.Context) ([]*model.Prompt, error) {
	return m.items, m.err
}

type mockTelemetry struct {
	recordFn func(ctx context.Context, subject, email string, in service.LoginInput, c service.ClientInfo) (*model.LoginRecord, error)
}

func (m *mockTelemetry) RecordLogin(ctx context.Context, subject, email string, in service.LoginInput, c service.ClientInfo) (*model.LoginRecord, error) {
	return m.recordFn(ctx, subject, email, in, c)
}

func (m *mockTelemetry) Probe(c service.ClientInfo) service.ProbeResult {
	return service.ProbeResult{IP: c.IP, Info: useragent.Parse(c.UserAgent)}
}

// testDeps: набор моков для APIHandler. Незаданные зависимости
// паникуют при вызове, что сразу проявляется в тесте.
type testDeps struct {
	replicator *mockReplicator
	ingestor   *mockIngestor
	documents  *mockDocuments
	analyzer   *mockAnalyzer
	prompts    *mockPrompts
	telemetry  *mockTelemetry
}

func newTestHandler(d testDeps) *APIHandler {
	if d.replicator == nil {
		d.replicator = &mockReplicator{}
	}
	if d.ingestor == nil {
		d.ingestor = &mockIngestor{}
	}
	if d.documents == nil {
		d.documents = &mockDocuments{}
	}
	if d.analyzer == nil {
		d.analyzer = &mockAnalyzer{}
	}
	if d.prompts == nil {
		d.prompts = &mockPrompts{}
	}
	if d.telemetry == nil {
		d.telemetry = &mockTelemetry{}
	}
	return NewAPIHandler(NewHealthHandler(nil, nil), d.replicator, d.ingestor, d.documents,
		d.analyzer, d.prompts, d.telemetry, testLogger())
}

// serve выполняет запрос через chi-маршрут pattern (для параметров пути).
func serve(t *testing.T, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), &middleware.Identity{UserID: userID, Email: userID + "@example.com"}))
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("не удалось разобрать ответ: %v", err)
	}
	return body
}
