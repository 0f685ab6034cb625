// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /me and POST /userid on the supplied router.
// The caller mounts them behind RequireSignedIn; the handlers still check
// the session via auth.CurrentUser.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/me", h.ServeMe)
	r.Post("/userid", h.ServeSetUserID)
}
