// internal/app/features/messages/routes.go
package messages

import "github.com/go-chi/chi/v5"

// MountRoutes registers the message endpoints on the /groups router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/{id}/messages", h.ServeList)
	r.Post("/{id}/messages", h.HandlePost)
}
