// handler.go: основной обработчик API docflow.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
	"github.com/bigkaa/docflow/internal/domain/model"
	"github.com/bigkaa/docflow/internal/service"
)

// Replicator: генерация сроков общего контроля.
type Replicator interface {
	Replicate(ctx context.Context, itemID int64, repetitions int) (*service.ReplicationResult, error)
}

// Ingestor: загрузка документов.
type Ingestor interface {
	Ingest(ctx context.Context, req service.UploadRequest) (*service.IngestionResult, error)
}

// DocumentReader: чтение документов.
type DocumentReader interface {
	List(ctx context.Context, limit, offset int) ([]*model.DocumentWithLinks, int, error)
	Get(ctx context.Context, id int64) (*model.Document, error)
	DownloadURL(ctx context.Context, id int64) (*service.DownloadLink, error)
}

// Analyzer: анализ по запросу пользователя.
type Analyzer interface {
	AnalyzeText(ctx context.Context, promptID string, categoryID *int64, text string) (*service.AnalysisResult, error)
	AnalyzeIndicators(ctx context.Context, userID, promptID, text string, indicators []service.IndicatorRef) (*service.IndicatorsAnalysisResult, error)
	History(ctx context.Context, userID string, limit int) ([]*model.AnalysisHistory, error)
	AnalyzeDocument(ctx context.Context, documentID int64, promptID string) (*service.AnalysisResult, error)
	AnalyzeIndicator(ctx context.Context, indicatorID int64, promptID, text string) (*service.IndicatorAnalysisResult, error)
}

// PromptLister: список промптов.
type PromptLister interface {
	ListPrompts(ctx context.Context) ([]*model.Prompt, error)
}

// LoginRecorder: аудит входов.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, subject, tokenEmail string, in service.LoginInput, client service.ClientInfo) (*model.LoginRecord, error)
	Probe(client service.ClientInfo) service.ProbeResult
}

// APIHandler: основной обработчик API docflow.
type APIHandler struct {
	health     *HealthHandler
	replicator Replicator
	ingestion  Ingestor
	documents  DocumentReader
	analysis   Analyzer
	prompts    PromptLister
	telemetry  LoginRecorder
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	replicator Replicator,
	ingestion Ingestor,
	documents DocumentReader,
	analysis Analyzer,
	prompts PromptLister,
	telemetry LoginRecorder,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:     health,
		replicator: replicator,
		ingestion:  ingestion,
		documents:  documents,
		analysis:   analysis,
		prompts:    prompts,
		telemetry:  telemetry,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive: liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady: readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics: Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Сообщение передаётся клиенту как есть.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		apierrors.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrStorage):
		h.logger.Error(op, slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeStorageError, err.Error())
	case errors.Is(err, service.ErrPersistence):
		h.logger.Error(op, slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodePersistenceError, err.Error())
	case errors.Is(err, service.ErrNoAPIKey):
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeNoAPIKey, err.Error())
	case errors.Is(err, service.ErrInference):
		h.logger.Error(op, slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeInferenceError, err.Error())
	default:
		h.logger.Error(op, slog.String("error", err.Error()))
		apierrors.InternalError(w, op+": "+err.Error())
	}
}

// decodeJSON читает тело запроса в dst. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// pathID разбирает положительный числовой параметр пути.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный %s: %q", name, raw)
	}
	return id, nil
}

// queryInt разбирает необязательный целочисленный query-параметр.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный %s: %q", name, raw)
	}
	return &v, nil
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
