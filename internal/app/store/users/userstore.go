package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studyhub/internal/app/store/studycounters"
	"github.com/dalemusser/studyhub/internal/app/system/normalize"
	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateIdentity is returned when a user already exists for (email, provider).
	ErrDuplicateIdentity = errors.New("a user with this email already exists for this provider")
	// ErrDuplicateUserID is returned when another user already holds the handle.
	ErrDuplicateUserID = errors.New("user id already taken")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByUserID loads a user by handle. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByUserID(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"user_id": normalize.UserID(userID)}).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByIdentity looks up the user for an (email, provider) pair.
func (s *Store) GetByIdentity(ctx context.Context, email, provider string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{
		"email":    normalize.Email(email),
		"provider": normalize.Provider(provider),
	}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Create inserts a new user without a handle.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.UserID = ""
	u.Email = normalize.Email(u.Email)
	u.Provider = normalize.Provider(u.Provider)
	u.Name = normalize.Name(u.Name)
	if u.Status.State == "" {
		u.Status = models.UserStatus{State: models.StatusOffline, UpdatedAt: now}
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, err
	}
	return u, nil
}

// RefreshProfile updates the display name and avatar from the provider.
// Empty values leave the stored field alone.
func (s *Store) RefreshProfile(ctx context.Context, id primitive.ObjectID, name, image string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if n := normalize.Name(name); n != "" {
		set["name"] = n
	}
	if image != "" {
		set["image"] = image
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// ClaimUserID sets the handle only if the user has none yet. It reports
// whether the write happened; false means the user already had one (or
// does not exist). A handle held by someone else yields ErrDuplicateUserID.
func (s *Store) ClaimUserID(ctx context.Context, id primitive.ObjectID, userID string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"user_id": bson.M{"$exists": false}},
				bson.M{"user_id": ""},
			},
		},
		bson.M{"$set": bson.M{
			"user_id":    normalize.UserID(userID),
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, ErrDuplicateUserID
		}
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// UserIDExists reports whether any user holds the handle.
func (s *Store) UserIDExists(ctx context.Context, userID string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"user_id": normalize.UserID(userID)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return err == nil, err
}

// DisplayByUserIDs returns name, avatar and email for each handle in one
// query. Unknown handles are absent from the map.
func (s *Store) DisplayByUserIDs(ctx context.Context, userIDs []string) (map[string]models.Display, error) {
	out := make(map[string]models.Display, len(userIDs))
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.c.Find(ctx, bson.M{"user_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"user_id": 1, "name": 1, "image": 1, "email": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d models.Display
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out[d.UserID] = d
	}
	return out, cur.Err()
}

// ActiveFocusByUserIDs returns the users among userIDs whose focus session
// is running, in one query.
func (s *Store) ActiveFocusByUserIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"user_id": bson.M{"$in": ids}, "focus_session.is_active": true},
		options.Find().SetProjection(bson.M{
			"user_id": 1, "name": 1, "image": 1, "email": 1, "focus_session": 1, "status": 1,
		}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartFocus marks a focus session as running and sets status studying.
func (s *Store) StartFocus(ctx context.Context, id primitive.ObjectID, fs models.FocusSession) (models.User, error) {
	now := time.Now().UTC()
	fs.IsActive = true
	if fs.StartedAt == nil {
		fs.StartedAt = &now
	}
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"focus_session": fs,
			"status":        models.UserStatus{State: models.StatusStudying, UpdatedAt: now},
			"updated_at":    now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	return u, err
}

// StopFocus ends a running session and returns the user as it was before,
// so the caller can read StartedAt. mongo.ErrNoDocuments means none was running.
func (s *Store) StopFocus(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	now := time.Now().UTC()
	var before models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "focus_session.is_active": true},
		bson.M{
			"$set": bson.M{
				"focus_session.is_active": false,
				"status":                  models.UserStatus{State: models.StatusOffline, UpdatedAt: now},
				"updated_at":              now,
			},
			"$unset": bson.M{"focus_session.started_at": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	return before, err
}

// SetStatus records the user's presence state.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, state string) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     models.UserStatus{State: state, UpdatedAt: now},
		"updated_at": now,
	}})
	return err
}

// RecordStudy adds minutes to the user's own counters. now must be in the
// stats timezone.
func (s *Store) RecordStudy(ctx context.Context, id primitive.ObjectID, minutes int, now time.Time) error {
	return studycounters.Record(ctx, s.c, bson.M{"_id": id}, studycounters.UserPaths, minutes, now)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
