// repetitions.go: POST /api/v1/repetitions: генерация сроков общего контроля.
package handlers

import (
	"fmt"
	"net/http"
	"time"
)

type repetitionsRequest struct {
	ControlItemID int64 `json:"control_item_id"`
	Repetitions   *int  `json:"repetitions"`
}

type occurrenceResponse struct {
	ID      int64  `json:"id"`
	DueDate string `json:"due_date"`
}

type repetitionsResponse struct {
	Success      bool                 `json:"success"`
	Inserted     int                  `json:"inserted"`
	Message      string               `json:"message"`
	Anchor       string               `json:"anchor"`
	AnchorSource string               `json:"anchor_source"`
	Dates        []string             `json:"dates"`
	Occurrences  []occurrenceResponse `json:"occurrences"`
}

// AddRepetitions: POST /api/v1/repetitions.
// repetitions по умолчанию 1.
func (h *APIHandler) AddRepetitions(w http.ResponseWriter, r *http.Request) {
	var req repetitionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reps := 1
	if req.Repetitions != nil {
		reps = *req.Repetitions
	}

	res, err := h.replicator.Replicate(r.Context(), req.ControlItemID, reps)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка добавления повторений")
		return
	}

	resp := repetitionsResponse{
		Success:      true,
		Inserted:     res.Inserted,
		Message:      fmt.Sprintf("добавлено сроков: %d", res.Inserted),
		Anchor:       res.Anchor.Format(time.RFC3339),
		AnchorSource: res.AnchorSource,
		Dates:        make([]string, len(res.Dates)),
		Occurrences:  make([]occurrenceResponse, len(res.Occurrences)),
	}
	for i, d := range res.Dates {
		resp.Dates[i] = d.Format(time.DateOnly)
	}
	for i, o := range res.Occurrences {
		resp.Occurrences[i] = occurrenceResponse{ID: o.ID, DueDate: o.DueDate.Format(time.DateOnly)}
	}
	writeJSON(w, http.StatusOK, resp)
}
