// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import (
	"context"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Access is what a passed check learned about the caller and the group.
type Access struct {
	Group  models.Group
	Member models.GroupMember
}

// Gate answers "may this user act in this group" from the authoritative
// group_members collection. Every group-scoped operation goes through it.
type Gate struct {
	groups  *groupstore.Store
	members *membershipstore.Store
}

func New(db *mongo.Database) *Gate {
	return &Gate{groups: groupstore.New(db), members: membershipstore.New(db)}
}

// ParseGroupID turns a path id into an ObjectID. Malformed ids are
// reported as a missing group.
func ParseGroupID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperr.GroupNotFound
	}
	return id, nil
}

// RequireMember loads the group (404 if absent) and the caller's active
// membership (403 if absent or pending).
func (g *Gate) RequireMember(ctx context.Context, groupID primitive.ObjectID, userID string) (Access, error) {
	grp, err := g.groups.GetByID(ctx, groupID)
	if err == mongo.ErrNoDocuments {
		return Access{}, apperr.GroupNotFound
	}
	if err != nil {
		return Access{}, apperr.Internal(err)
	}

	m, err := g.members.Get(ctx, groupID, userID)
	if err == mongo.ErrNoDocuments || (err == nil && !m.IsActive()) {
		return Access{}, apperr.NotMember
	}
	if err != nil {
		return Access{}, apperr.Internal(err)
	}
	return Access{Group: grp, Member: m}, nil
}

// RequireModerator is RequireMember plus owner or admin role.
func (g *Gate) RequireModerator(ctx context.Context, groupID primitive.ObjectID, userID string) (Access, error) {
	a, err := g.RequireMember(ctx, groupID, userID)
	if err != nil {
		return Access{}, err
	}
	if !a.Member.CanModerate() {
		return Access{}, apperr.NotModerator
	}
	return a, nil
}

// RequireOwner is RequireMember plus the owner role.
func (g *Gate) RequireOwner(ctx context.Context, groupID primitive.ObjectID, userID string) (Access, error) {
	a, err := g.RequireMember(ctx, groupID, userID)
	if err != nil {
		return Access{}, err
	}
	if a.Member.Role != models.RoleOwner {
		return Access{}, apperr.NotOwner
	}
	return a, nil
}

// Authorize has the shape of a realtime subscription check.
func (g *Gate) Authorize(ctx context.Context, userID string, groupID primitive.ObjectID) error {
	_, err := g.RequireMember(ctx, groupID, userID)
	return err
}
