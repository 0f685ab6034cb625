// internal/app/features/members/join.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

type joinRequest struct {
	InviteCode string `json:"inviteCode"`
	Password   string `json:"password"`
}

// HandleJoin handles POST /groups/{id}/join. {id} may be the group id or
// its invite code; when it is the id, the body must carry the matching code.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || !u.HasUserID() {
		apperr.Write(w, h.Log, apperr.UserIDRequired)
		return
	}

	var req joinRequest
	if err := jsonio.Decode(w, r, &req); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Members.Join(ctx, u, chi.URLParam(r, "id"), req.InviteCode, req.Password)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	jsonio.Write(w, http.StatusOK, res)
}

// HandleLeave handles POST /groups/{id}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.Leave(ctx, u, gid); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, okResponse{OK: true})
}
