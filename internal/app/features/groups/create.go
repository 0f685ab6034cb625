// internal/app/features/groups/create.go
package groups

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/service/registry"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type groupResponse struct {
	Group registry.Detail `json:"group"`
}

// HandleCreate handles POST /groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok || !u.HasUserID() {
		apperr.Write(w, h.Log, apperr.UserIDRequired)
		return
	}

	var in registry.CreateInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	d, err := h.Registry.Create(ctx, u.UserID, in)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	h.Log.Info("group created",
		zap.String("group_id", d.ID.Hex()),
		zap.String("owner", u.UserID))
	jsonio.Write(w, http.StatusCreated, groupResponse{Group: d})
}
