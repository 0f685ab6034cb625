// internal/app/features/messages/handler.go
package messages

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/service/messaging"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/paging"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves a group's message channel.
type Handler struct {
	Messages *messaging.Service
	Log      *zap.Logger
}

func NewHandler(svc *messaging.Service, logger *zap.Logger) *Handler {
	return &Handler{Messages: svc, Log: logger}
}

type postRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	Message messaging.Message `json:"message"`
}

type listResponse struct {
	Messages []messaging.Message `json:"messages"`
	Limit    int64               `json:"limit"`
	Skip     int64               `json:"skip"`
}

// HandlePost handles POST /groups/{id}/messages.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	var req postRequest
	if err := jsonio.Decode(w, r, &req); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	msg, err := h.Messages.Post(ctx, u, gid, req.Content)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusCreated, messageResponse{Message: msg})
}

// ServeList handles GET /groups/{id}/messages?limit=&skip=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	win := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Messages.List(ctx, u.UserID, gid, int(win.Limit), int(win.Skip))
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	jsonio.Write(w, http.StatusOK, listResponse{Messages: msgs, Limit: win.Limit, Skip: win.Skip})
}
