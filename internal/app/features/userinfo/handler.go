// internal/app/features/userinfo/handler.go
package userinfo

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/service/identity"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's own record.
type Handler struct {
	Identity *identity.Service
	Log      *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(ident *identity.Service, logger *zap.Logger) *Handler {
	return &Handler{Identity: ident, Log: logger}
}

type meResponse struct {
	User models.User `json:"user"`
}

// ServeMe handles GET /me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Identity.Get(ctx, su.ID)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, meResponse{User: u})
}

type setUserIDRequest struct {
	UserID string `json:"userId"`
}

// ServeSetUserID handles POST /userid.
func (h *Handler) ServeSetUserID(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}

	var req setUserIDRequest
	if err := jsonio.Decode(w, r, &req); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Identity.SetUserID(ctx, su.ID, req.UserID)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, meResponse{User: u})
}
