// internal/app/features/realtime/routes.go
package realtime

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted at /realtime. The websocket route does
// its own authentication so that ticket holders without a cookie can connect.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeWS)
	r.Post("/ticket", h.HandleTicket)
	return r
}
