// internal/app/features/members/manage.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// HandleApprove handles POST /groups/{id}/requests/{userId}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}
	target := normalize.UserID(chi.URLParam(r, "userId"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.Approve(ctx, u.UserID, gid, target); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, okResponse{OK: true})
}

// HandleReject handles POST /groups/{id}/requests/{userId}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}
	target := normalize.UserID(chi.URLParam(r, "userId"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Members.Reject(ctx, u.UserID, gid, target); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, okResponse{OK: true})
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleSetRole handles PUT /groups/{id}/members/{userId}/role (owner only).
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := jsonio.Decode(w, r, &req); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	target := normalize.UserID(chi.URLParam(r, "userId"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Members.SetRole(ctx, u.UserID, gid, target, req.Role); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, okResponse{OK: true})
}
