package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a named study group.
//
// NOTE:
//   - MemberCount is a cached counter kept in step with group_members by
//     increments/decrements; the reconcile worker repairs drift.
//   - Visibility is the owner's stated intent. Whether a password is needed
//     to join is decided by PasswordHash alone (see IsPasswordless).
type Group struct {
	ID              primitive.ObjectID `bson:"_id" json:"id"`
	Name            string             `bson:"name" json:"name"`
	NameCI          string             `bson:"name_ci" json:"-"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	CoverImage      string             `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
	OwnerID         string             `bson:"owner_id" json:"owner_id"`
	Visibility      string             `bson:"visibility" json:"visibility"`
	PasswordHash    string             `bson:"password_hash,omitempty" json:"-"`
	MaxMembers      *int               `bson:"max_members,omitempty" json:"max_members,omitempty"`
	RequireApproval bool               `bson:"require_approval" json:"require_approval"`
	MemberCount     int                `bson:"member_count" json:"member_count"`
	InviteCode      string             `bson:"invite_code" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// IsPasswordless reports whether joining needs no password.
// Independent of Visibility: a private group without a password is passwordless.
func (g Group) IsPasswordless() bool { return g.PasswordHash == "" }

// IsFull reports whether the group has reached MaxMembers.
func (g Group) IsFull() bool {
	return g.MaxMembers != nil && g.MemberCount >= *g.MaxMembers
}
