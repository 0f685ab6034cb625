// internal/app/store/memberships/membershipstore.go
package membershipstore

// Members reference users by handle (users.user_id), not by ObjectID.

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studyhub/internal/app/store/studycounters"
	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_members")}
}

var ErrDuplicateMembership = errors.New("user is already a member of this group")

// activeFilter matches rows that count as membership. Rows written before
// the pending state existed have no status.
func activeFilter(groupID primitive.ObjectID) bson.M {
	return bson.M{"group_id": groupID, "status": bson.M{"$ne": models.MemberPending}}
}

// Add inserts a membership row. Role and Status default to member/active.
func (s *Store) Add(ctx context.Context, m models.GroupMember) (models.GroupMember, error) {
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	if m.Status == "" {
		m.Status = models.MemberActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.LastActiveAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMember{}, ErrDuplicateMembership
		}
		return models.GroupMember{}, err
	}
	return m, nil
}

// Get returns the row for (groupID, userID), pending or not.
// Returns mongo.ErrNoDocuments if there is none.
func (s *Store) Get(ctx context.Context, groupID primitive.ObjectID, userID string) (models.GroupMember, error) {
	var m models.GroupMember
	if err := s.c.FindOne(ctx, bson.M{"group_id": groupID, "user_id": userID}).Decode(&m); err != nil {
		return models.GroupMember{}, err
	}
	return m, nil
}

// Remove deletes the active row for (groupID, userID) and reports whether
// one was deleted.
func (s *Store) Remove(ctx context.Context, groupID primitive.ObjectID, userID string) (bool, error) {
	f := activeFilter(groupID)
	f["user_id"] = userID
	res, err := s.c.DeleteOne(ctx, f)
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// RemovePending deletes a pending join request.
func (s *Store) RemovePending(ctx context.Context, groupID primitive.ObjectID, userID string) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"group_id": groupID, "user_id": userID, "status": models.MemberPending})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

// Activate flips a pending request to active. It reports false when there
// was no pending row, so two approvers cannot both count the member.
func (s *Store) Activate(ctx context.Context, groupID primitive.ObjectID, userID string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID, "status": models.MemberPending},
		bson.M{"$set": bson.M{"status": models.MemberActive, "joined_at": now, "last_active_at": now}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetRole changes an active member's role. Owners are never matched.
func (s *Store) SetRole(ctx context.Context, groupID primitive.ObjectID, userID, role string) (bool, error) {
	f := activeFilter(groupID)
	f["user_id"] = userID
	f["role"] = bson.M{"$ne": models.RoleOwner}
	res, err := s.c.UpdateOne(ctx, f, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ListActive returns the active members of a group in storage order.
func (s *Store) ListActive(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupMember, error) {
	return s.find(ctx, activeFilter(groupID), nil)
}

// ListPending returns join requests, oldest first.
func (s *Store) ListPending(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupMember, error) {
	return s.find(ctx, bson.M{"group_id": groupID, "status": models.MemberPending},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}))
}

// ListWithLocation returns active members that currently share a location.
func (s *Store) ListWithLocation(ctx context.Context, groupID primitive.ObjectID) ([]models.GroupMember, error) {
	f := activeFilter(groupID)
	f["location"] = bson.M{"$exists": true}
	return s.find(ctx, f, options.Find().SetSort(bson.D{{Key: "location.updated_at", Value: -1}}))
}

// CountActive counts the active rows of a group.
func (s *Store) CountActive(ctx context.Context, groupID primitive.ObjectID) (int, error) {
	n, err := s.c.CountDocuments(ctx, activeFilter(groupID))
	return int(n), err
}

// ActiveGroupIDs returns the groups where userID is an active member.
func (s *Store) ActiveGroupIDs(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"user_id": userID, "status": bson.M{"$ne": models.MemberPending}},
		options.Find().SetProjection(bson.M{"group_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			GroupID primitive.ObjectID `bson:"group_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.GroupID)
	}
	return ids, cur.Err()
}

// SetLocation overwrites the member's location. Last write wins.
func (s *Store) SetLocation(ctx context.Context, groupID primitive.ObjectID, userID string, loc models.MemberLocation) (bool, error) {
	f := activeFilter(groupID)
	f["user_id"] = userID
	res, err := s.c.UpdateOne(ctx, f, bson.M{"$set": bson.M{
		"location":       loc,
		"last_active_at": time.Now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ClearLocation removes the member's location field.
func (s *Store) ClearLocation(ctx context.Context, groupID primitive.ObjectID, userID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$unset": bson.M{"location": ""}})
	return err
}

// Touch records activity in the group.
func (s *Store) Touch(ctx context.Context, groupID primitive.ObjectID, userID string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}})
	return err
}

// RecordStudy adds minutes to every active membership of userID.
// now must be in the stats timezone.
func (s *Store) RecordStudy(ctx context.Context, userID string, minutes int, now time.Time) error {
	filter := bson.M{"user_id": userID, "status": bson.M{"$ne": models.MemberPending}}
	return studycounters.Record(ctx, s.c, filter, studycounters.MemberPaths, minutes, now)
}

// EnsureOwner inserts the owner row if it is missing and reports whether
// it had to. An existing row for the owner is left as is.
func (s *Store) EnsureOwner(ctx context.Context, groupID primitive.ObjectID, ownerID string, joinedAt time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": ownerID},
		bson.M{"$setOnInsert": bson.M{
			"role":                models.RoleOwner,
			"status":              models.MemberActive,
			"joined_at":           joinedAt,
			"last_active_at":      joinedAt,
			"weekly_study":        models.WeeklyStudy{},
			"total_study_minutes": 0,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.GroupMember, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = s.c.Find(ctx, filter, opts)
	} else {
		cur, err = s.c.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GroupMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
