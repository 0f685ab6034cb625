// internal/app/features/focus/routes.go
package focus

import "github.com/go-chi/chi/v5"

// MountRoutes registers POST /focus/start, POST /focus/stop and PUT /status.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/focus/start", h.HandleStart)
	r.Post("/focus/stop", h.HandleStop)
	r.Put("/status", h.HandleStatus)
}
