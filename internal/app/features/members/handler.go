// internal/app/features/members/handler.go
package members

import (
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/policy/grouppolicy"
	"github.com/dalemusser/studyhub/internal/app/service/membership"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves membership endpoints under /groups/{id}.
type Handler struct {
	Members *membership.Service
	Log     *zap.Logger
}

func NewHandler(svc *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{Members: svc, Log: logger}
}

// caller resolves the session user and group id, writing the error
// response itself on failure.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, primitive.ObjectID, bool) {
	u, gid, err := grouppolicy.FromRequest(r)
	if err != nil {
		apperr.Write(w, h.Log, err)
		return nil, primitive.NilObjectID, false
	}
	return u, gid, true
}

type okResponse struct {
	OK bool `json:"ok"`
}
