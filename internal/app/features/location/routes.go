// internal/app/features/location/routes.go
package location

import "github.com/go-chi/chi/v5"

// MountRoutes registers location and focus-status endpoints on the
// /groups router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/{id}/location", h.ServeList)
	r.Put("/{id}/location", h.HandleSet)
	r.Delete("/{id}/location", h.HandleClear)
	r.Get("/{id}/focus-status", h.ServeFocusStatus)
}
