// internal/app/features/focus/handler.go
package focus

import (
	"context"
	"net/http"

	focussvc "github.com/dalemusser/studyhub/internal/app/service/focus"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the caller's own focus session and presence status.
type Handler struct {
	Focus *focussvc.Service
	Log   *zap.Logger
}

func NewHandler(svc *focussvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Focus: svc, Log: logger}
}

type sessionResponse struct {
	FocusSession models.FocusSession `json:"focus_session"`
}

type stoppedResponse struct {
	Stopped focussvc.Stopped `json:"stopped"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleStart handles POST /focus/start.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}
	var in focussvc.StartInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	fs, err := h.Focus.Start(ctx, u, in)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, sessionResponse{FocusSession: fs})
}

// HandleStop handles POST /focus/stop.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	st, err := h.Focus.Stop(ctx, u)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, stoppedResponse{Stopped: st})
}

// HandleStatus handles PUT /status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}
	var req statusRequest
	if err := jsonio.Decode(w, r, &req); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Focus.SetStatus(ctx, u, req.Status); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, map[string]string{"status": req.Status})
}
