// internal/app/features/realtime/handler.go
package realtime

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

var hubClosed = apperr.New(apperr.KindInternal, "realtime_unavailable", "Realtime updates are not available right now.").
	WithStatus(http.StatusServiceUnavailable)

// Handler upgrades websocket connections and issues connect tickets.
type Handler struct {
	Manager *realtime.Manager
	Tickets *realtime.Tickets
	Users   auth.UserFetcher
	Log     *zap.Logger
}

func NewHandler(mgr *realtime.Manager, tickets *realtime.Tickets, users auth.UserFetcher, logger *zap.Logger) *Handler {
	return &Handler{Manager: mgr, Tickets: tickets, Users: users, Log: logger}
}

type ticketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleTicket handles POST /realtime/ticket.
func (h *Handler) HandleTicket(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		apperr.Write(w, h.Log, apperr.Unauthenticated)
		return
	}
	if !u.HasUserID() {
		apperr.Write(w, h.Log, apperr.UserIDRequired)
		return
	}

	tok, exp, err := h.Tickets.Issue(u.ID)
	if err != nil {
		apperr.Write(w, h.Log, apperr.Internal(err))
		return
	}
	jsonio.Write(w, http.StatusOK, ticketResponse{Ticket: tok, ExpiresAt: exp.UTC()})
}

// ServeWS handles GET /realtime/ws. The caller is identified by the session
// cookie or, when cookies are unavailable, by ?ticket=.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	u, err := h.caller(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if !u.HasUserID() {
		apperr.Write(w, h.Log, apperr.UserIDRequired)
		return
	}

	err = h.Manager.Serve(w, r, u.UserID)
	if errors.Is(err, realtime.ErrClosed) {
		apperr.Write(w, h.Log, hubClosed)
		return
	}
	if err != nil {
		// The upgrader has already answered the request.
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
	}
}

func (h *Handler) caller(r *http.Request) (*auth.SessionUser, error) {
	if u, ok := auth.CurrentUser(r); ok {
		return u, nil
	}
	ticket := query.Get(r, "ticket")
	if ticket == "" {
		return nil, apperr.Unauthenticated
	}
	id, err := h.Tickets.Verify(ticket)
	if err != nil {
		return nil, apperr.Unauthenticated
	}
	u := h.Users.FetchUser(r.Context(), id)
	if u == nil {
		return nil, apperr.Unauthenticated
	}
	return u, nil
}
