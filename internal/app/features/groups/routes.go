// internal/app/features/groups/routes.go
package groups

import "github.com/go-chi/chi/v5"

// MountRoutes registers the registry endpoints on a router mounted at
// /groups. Membership, messaging, location and ranking endpoints share the
// same router and are registered by their own packages.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeView)
}
