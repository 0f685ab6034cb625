// internal/app/features/members/routes.go
package members

import "github.com/go-chi/chi/v5"

// MountRoutes registers membership endpoints on the /groups router.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/{id}/join", h.HandleJoin)
	r.Post("/{id}/leave", h.HandleLeave)
	r.Get("/{id}/members", h.ServeMembers)
	r.Put("/{id}/members/{userId}/role", h.HandleSetRole)
	r.Get("/{id}/requests", h.ServeRequests)
	r.Post("/{id}/requests/{userId}/approve", h.HandleApprove)
	r.Post("/{id}/requests/{userId}/reject", h.HandleReject)
}
