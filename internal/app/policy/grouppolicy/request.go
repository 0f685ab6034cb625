// internal/app/policy/grouppolicy/request.go
package grouppolicy

import (
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromRequest returns the signed-in caller and the {id} path parameter of a
// group-scoped route. A caller without a user id is UserIDRequired; a
// malformed id is GroupNotFound. Membership is checked by the services.
func FromRequest(r *http.Request) (*auth.SessionUser, primitive.ObjectID, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return nil, primitive.NilObjectID, apperr.Unauthenticated
	}
	if !u.HasUserID() {
		return nil, primitive.NilObjectID, apperr.UserIDRequired
	}
	gid, err := ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	return u, gid, nil
}
