// analysis.go: обработчики анализа ИИ: свободный текст, пакет показателей,
// история пакетных анализов, отдельный показатель, список промптов.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
	"github.com/bigkaa/docflow/internal/api/middleware"
	"github.com/bigkaa/docflow/internal/service"
)

type analysisResponse struct {
	Success      bool    `json:"success"`
	Result       string  `json:"result"`
	PromptText   string  `json:"prompt_text"`
	PromptID     *string `json:"prompt_id"`
	PromptSource string  `json:"prompt_source"`
}

type indicatorsAnalysisResponse struct {
	analysisResponse
	HistoryID *int64 `json:"history_id"`
	Saved     bool   `json:"saved"`
}

type indicatorAnalysisResponse struct {
	analysisResponse
	Indicator service.IndicatorRef `json:"indicator"`
	Saved     bool                 `json:"saved"`
}

type historyItemResponse struct {
	ID             int64    `json:"id"`
	IndicatorIDs   []int64  `json:"indicator_ids"`
	IndicatorNames []string `json:"indicator_names"`
	Result         string   `json:"result"`
	PromptText     string   `json:"prompt_text"`
	PromptID       *string  `json:"prompt_id"`
	AnalyzedAt     string   `json:"analyzed_at"`
}

type promptResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	IsDefault bool   `json:"is_default"`
}

// AnalyzeText: POST /api/v1/analysis.
// Тело: {"prompt_id", "category_id", "text"}.
func (h *APIHandler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromptID   string `json:"prompt_id"`
		CategoryID *int64 `json:"category_id"`
		Text       string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.analysis.AnalyzeText(r.Context(), req.PromptID, req.CategoryID, req.Text)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка анализа текста")
		return
	}
	writeJSON(w, http.StatusOK, mapAnalysis(res))
}

// AnalyzeIndicators: POST /api/v1/analysis/indicators.
// Тело: {"prompt_id", "text", "indicators": [{"id", "name"}]}.
// Запись истории сохраняется от имени владельца токена.
func (h *APIHandler) AnalyzeIndicators(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует identity")
		return
	}
	var req struct {
		PromptID   string                 `json:"prompt_id"`
		Text       string                 `json:"text"`
		Indicators []service.IndicatorRef `json:"indicators"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.analysis.AnalyzeIndicators(r.Context(), identity.UserID, req.PromptID, req.Text, req.Indicators)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка анализа показателей")
		return
	}
	writeJSON(w, http.StatusOK, indicatorsAnalysisResponse{
		analysisResponse: mapAnalysis(&res.AnalysisResult),
		HistoryID:        res.HistoryID,
		Saved:            res.Saved,
	})
}

// AnalysisHistory: GET /api/v1/analysis/history?limit=N.
func (h *APIHandler) AnalysisHistory(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует identity")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	l := 0
	if limit != nil {
		l = *limit
	}

	items, err := h.analysis.History(r.Context(), identity.UserID, l)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения истории анализов")
		return
	}

	out := make([]historyItemResponse, len(items))
	for i, it := range items {
		out[i] = historyItemResponse{
			ID:             it.ID,
			IndicatorIDs:   it.IndicatorIDs,
			IndicatorNames: it.IndicatorNames,
			Result:         it.Result,
			PromptText:     it.PromptText,
			PromptID:       it.PromptID,
			AnalyzedAt:     it.AnalyzedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": out})
}

// AnalyzeIndicator: POST /api/v1/indicators/{id}/analysis.
// Тело необязательно: {"prompt_id", "text"}.
func (h *APIHandler) AnalyzeIndicator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var req struct {
		PromptID string `json:"prompt_id"`
		Text     string `json:"text"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	res, err := h.analysis.AnalyzeIndicator(r.Context(), id, req.PromptID, req.Text)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка анализа показателя")
		return
	}
	writeJSON(w, http.StatusOK, indicatorAnalysisResponse{
		analysisResponse: mapAnalysis(&res.AnalysisResult),
		Indicator:        service.IndicatorRef{ID: res.Indicator.ID, Name: res.Indicator.Name},
		Saved:            res.Saved,
	})
}

// ListPrompts: GET /api/v1/prompts.
func (h *APIHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.prompts.ListPrompts(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка промптов")
		return
	}

	items := make([]promptResponse, len(prompts))
	for i, p := range prompts {
		items[i] = promptResponse{ID: p.ID, Name: p.Name, Text: p.Text, IsDefault: p.IsDefault}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func mapAnalysis(res *service.AnalysisResult) analysisResponse {
	return analysisResponse{
		Success:      true,
		Result:       res.Result,
		PromptText:   res.PromptText,
		PromptID:     res.PromptID,
		PromptSource: res.PromptSource,
	}
}

// decodeOptionalJSON как decodeJSON, но пустое тело допустимо.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
	return false
}
