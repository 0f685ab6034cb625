// internal/app/features/groups/view.go
package groups

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// ServeView handles GET /groups/{id}. The invite code is only included
// for members.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}
	gid, err := grouppolicy.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	d, err := h.Registry.Get(ctx, u.UserID, gid)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, groupResponse{Group: d})
}
