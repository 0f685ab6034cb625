// internal/app/features/ranking/routes.go
package ranking

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /groups/{id}/ranking on the /groups router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/{id}/ranking", h.ServeRanking)
}
