// internal/app/features/groups/list.go
package groups

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/service/registry"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
)

type listResponse struct {
	Groups []registry.Summary `json:"groups"`
}

// ServeList handles GET /groups.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Registry.ListBrowseable(ctx)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if groups == nil {
		groups = []registry.Summary{}
	}
	jsonio.Write(w, http.StatusOK, listResponse{Groups: groups})
}
