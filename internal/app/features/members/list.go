// internal/app/features/members/list.go
package members

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/service/membership"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
)

type listResponse struct {
	Members []membership.Member `json:"members"`
}

// ServeMembers handles GET /groups/{id}/members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Members.ListMembers(ctx, u.UserID, gid)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, listResponse{Members: nonNil(rows)})
}

// ServeRequests handles GET /groups/{id}/requests (owner or admin).
func (h *Handler) ServeRequests(w http.ResponseWriter, r *http.Request) {
	u, gid, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Members.ListPending(ctx, u.UserID, gid)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, listResponse{Members: nonNil(rows)})
}

func nonNil(rows []membership.Member) []membership.Member {
	if rows == nil {
		return []membership.Member{}
	}
	return rows
}
