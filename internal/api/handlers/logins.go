// logins.go: аудит входов: запись и диагностическая классификация клиента.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
	"github.com/bigkaa/docflow/internal/api/middleware"
	"github.com/bigkaa/docflow/internal/domain/useragent"
	"github.com/bigkaa/docflow/internal/service"
)

type loginRequest struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	UserName    string `json:"user_name"`
	LoginMethod string `json:"login_method"`
	SessionID   string `json:"session_id"`
	Success     *bool  `json:"success"`
	Error       string `json:"error"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id"`
	IP      string `json:"ip"`
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

type probeResponse struct {
	Success   bool   `json:"success"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	useragent.Info
}

// RecordLogin: POST /api/v1/logins.
// Субъект берётся из токена; user_id в теле должен с ним совпадать.
func (h *APIHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует identity")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := service.LoginInput{
		UserID:      req.UserID,
		Email:       req.Email,
		UserName:    req.UserName,
		LoginMethod: req.LoginMethod,
		SessionID:   req.SessionID,
		Success:     req.Success,
		Error:       req.Error,
	}
	rec, err := h.telemetry.RecordLogin(r.Context(), identity.UserID, identity.Email, in, clientInfo(r))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка записи входа")
		return
	}

	writeJSON(w, http.StatusCreated, loginResponse{
		Success: true,
		ID:      rec.ID,
		IP:      rec.IPAddress,
		Device:  rec.Device,
		Browser: rec.Browser,
		OS:      rec.OS,
	})
}

// ProbeLogin: GET /api/v1/logins/probe. Без аутентификации, ничего не сохраняет.
func (h *APIHandler) ProbeLogin(w http.ResponseWriter, r *http.Request) {
	client := clientInfo(r)
	res := h.telemetry.Probe(client)
	writeJSON(w, http.StatusOK, probeResponse{
		Success:   true,
		IP:        res.IP,
		UserAgent: client.UserAgent,
		Info:      res.Info,
	})
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{
		IP:        useragent.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
