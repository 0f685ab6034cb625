// internal/app/features/ranking/handler.go
package ranking

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	rankingsvc "github.com/dalemusser/studyhub/internal/app/service/ranking"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/jsonio"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves group leaderboards.
type Handler struct {
	Ranking *rankingsvc.Service
	Log     *zap.Logger
}

func NewHandler(svc *rankingsvc.Service, logger *zap.Logger) *Handler {
	return &Handler{Ranking: svc, Log: logger}
}

// ServeRanking handles GET /groups/{id}/ranking?period=today|week|month&limit=N.
func (h *Handler) ServeRanking(w http.ResponseWriter, r *http.Request) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	topN, _ := strconv.Atoi(query.Get(r, "limit"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	board, err := h.Ranking.Rank(ctx, u.UserID, gid, query.Get(r, "period"), topN)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return
	}
	if board.Entries == nil {
		board.Entries = []rankingsvc.Entry{}
	}
	jsonio.Write(w, http.StatusOK, board)
}
