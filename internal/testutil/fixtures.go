package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a signed-up user with the given handle. Pass "" for a
// user who has not picked one yet.
func (f *Fixtures) CreateUser(ctx context.Context, userID, name string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	id := primitive.NewObjectID()
	local := strings.ToLower(userID)
	if local == "" {
		local = id.Hex()
	}
	u := models.User{
		ID:        id,
		UserID:    strings.ToLower(userID),
		Name:      name,
		Email:     local + "@test.com",
		Provider:  "google",
		Image:     "https://img.test/" + userID + ".png",
		Status:    models.UserStatus{State: models.StatusOffline, UpdatedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// StartFocus marks the user's focus session active since startedAt.
func (f *Fixtures) StartFocus(ctx context.Context, userID string, startedAt time.Time) {
	f.t.Helper()

	_, err := f.db.Collection("users").UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{
		"focus_session": models.FocusSession{IsActive: true, StartedAt: &startedAt, TargetDuration: 25, SessionType: "pomodoro"},
	}})
	if err != nil {
		f.t.Fatalf("failed to start focus: %v", err)
	}
}

// GroupOptions tweaks CreateGroup.
type GroupOptions struct {
	PasswordHash    string
	Visibility      string
	MaxMembers      *int
	RequireApproval bool
	InviteCode      string
}

// CreateGroup inserts a group plus its owner membership with a count of 1,
// the state a completed create leaves behind.
func (f *Fixtures) CreateGroup(ctx context.Context, name, ownerID string, opts GroupOptions) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	if opts.Visibility == "" {
		opts.Visibility = models.VisibilityPublic
	}
	if opts.InviteCode == "" {
		opts.InviteCode = strings.ToUpper(primitive.NewObjectID().Hex()[18:24])
	}
	g := models.Group{
		ID:              primitive.NewObjectID(),
		Name:            name,
		NameCI:          text.Fold(name),
		OwnerID:         ownerID,
		Visibility:      opts.Visibility,
		PasswordHash:    opts.PasswordHash,
		MaxMembers:      opts.MaxMembers,
		RequireApproval: opts.RequireApproval,
		MemberCount:     1,
		InviteCode:      opts.InviteCode,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	f.insertMember(ctx, g.ID, ownerID, models.RoleOwner, models.MemberActive)
	return g
}

// AddMember inserts an active membership and bumps the cached count.
func (f *Fixtures) AddMember(ctx context.Context, groupID primitive.ObjectID, userID, role string) models.GroupMember {
	f.t.Helper()

	m := f.insertMember(ctx, groupID, userID, role, models.MemberActive)
	if _, err := f.db.Collection("groups").UpdateByID(ctx, groupID, bson.M{"$inc": bson.M{"member_count": 1}}); err != nil {
		f.t.Fatalf("failed to bump member_count: %v", err)
	}
	return m
}

// AddPending inserts a pending join request; the count is left alone.
func (f *Fixtures) AddPending(ctx context.Context, groupID primitive.ObjectID, userID string) models.GroupMember {
	f.t.Helper()
	return f.insertMember(ctx, groupID, userID, models.RoleMember, models.MemberPending)
}

// SetStudy overwrites a member's study counters for ranking tests.
func (f *Fixtures) SetStudy(ctx context.Context, groupID primitive.ObjectID, userID string, weekly models.WeeklyStudy, weekStart time.Time, total int) {
	f.t.Helper()

	_, err := f.db.Collection("group_members").UpdateOne(ctx,
		bson.M{"group_id": groupID, "user_id": userID},
		bson.M{"$set": bson.M{"weekly_study": weekly, "week_start": weekStart, "total_study_minutes": total}})
	if err != nil {
		f.t.Fatalf("failed to set study counters: %v", err)
	}
}

func (f *Fixtures) insertMember(ctx context.Context, groupID primitive.ObjectID, userID, role, status string) models.GroupMember {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.GroupMember{
		ID:           primitive.NewObjectID(),
		GroupID:      groupID,
		UserID:       userID,
		Role:         role,
		Status:       status,
		JoinedAt:     now,
		LastActiveAt: now,
	}
	if _, err := f.db.Collection("group_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}
