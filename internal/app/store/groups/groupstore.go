// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateName       = errors.New("a group with this name already exists")
	ErrDuplicateInviteCode = errors.New("invite code already in use")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// GetByInviteCode looks up a group by its (case-insensitive) invite code.
func (s *Store) GetByInviteCode(ctx context.Context, code string) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"invite_code": normalize.InviteCode(code)}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// InviteCodeExists reports whether any group uses code.
func (s *Store) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"invite_code": normalize.InviteCode(code)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return err == nil, err
}

// Create inserts g with a fresh ID. MemberCount is stored as given; the
// owner membership is added separately.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.InviteCode = normalize.InviteCode(g.InviteCode)
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			if dupIndex(err) == "uniq_groups_invitecode" {
				return models.Group{}, ErrDuplicateInviteCode
			}
			return models.Group{}, ErrDuplicateName
		}
		return models.Group{}, err
	}
	return g, nil
}

// dupIndex names the unique index an E11000 error tripped. The offending
// key values follow the index name in the message and are ignored.
func dupIndex(err error) string {
	msg := err.Error()
	i := strings.Index(msg, "index: ")
	if i < 0 {
		return ""
	}
	name := msg[i+len("index: "):]
	if j := strings.IndexAny(name, " ]"); j >= 0 {
		name = name[:j]
	}
	return name
}

// List returns every group, newest first.
func (s *Store) List(ctx context.Context) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IncMemberCount adjusts the cached count by delta.
func (s *Store) IncMemberCount(ctx context.Context, id primitive.ObjectID, delta int) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"member_count": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// SetMemberCount replaces the cached count with n, but only while it
// still reads from. A concurrent $inc makes the write miss; it reports
// whether a correction was written.
func (s *Store) SetMemberCount(ctx context.Context, id primitive.ObjectID, from, n int) (bool, error) {
	if from == n {
		return false, nil
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "member_count": from},
		bson.M{"$set": bson.M{"member_count": n, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Owners streams (id, owner_id, member_count) for every group to fn.
func (s *Store) Owners(ctx context.Context, fn func(id primitive.ObjectID, ownerID string, count int) error) error {
	cur, err := s.c.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1, "owner_id": 1, "member_count": 1}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID          primitive.ObjectID `bson:"_id"`
			OwnerID     string             `bson:"owner_id"`
			MemberCount int                `bson:"member_count"`
		}
		if err := cur.Decode(&row); err != nil {
			return err
		}
		if err := fn(row.ID, row.OwnerID, row.MemberCount); err != nil {
			return err
		}
	}
	return cur.Err()
}
