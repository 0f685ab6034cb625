// internal/app/features/location/handler.go
package location

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/service/presence"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves member locations and the focus-status board of a group.
type Handler struct {
	Presence *presence.Service
	Log      *zap.Logger
}

func NewHandler(svc *presence.Service, logger *zap.Logger) *Handler {
	return &Handler{Presence: svc, Log: logger}
}

type locationResponse struct {
	Location presence.MemberLocation `json:"location"`
}

type locationsResponse struct {
	Locations []presence.MemberLocation `json:"locations"`
}

type focusResponse struct {
	Active []presence.ActiveFocus `json:"active"`
}

// HandleSet handles PUT /groups/{id}/location.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	var in presence.LocationInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	loc, err := h.Presence.SetLocation(ctx, u, gid, in)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, locationResponse{Location: loc})
}

// ServeList handles GET /groups/{id}/location.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	locs, err := h.Presence.ListLocations(ctx, u.UserID, gid)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if locs == nil {
		locs = []presence.MemberLocation{}
	}
	jsonio.Write(w, http.StatusOK, locationsResponse{Locations: locs})
}

// HandleClear handles DELETE /groups/{id}/location.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Presence.ClearLocation(ctx, u.UserID, gid); err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	jsonio.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

// ServeFocusStatus handles GET /groups/{id}/focus-status.
func (h *Handler) ServeFocusStatus(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	active, err := h.Presence.ListActiveFocus(ctx, u.UserID, gid)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if active == nil {
		active = []presence.ActiveFocus{}
	}
	jsonio.Write(w, http.StatusOK, focusResponse{Active: active})
}
