package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Terminology: User Identifiers
//   - ID / _id: the MongoDB ObjectID of the user record (what sessions carry)
//   - UserID / user_id: the chosen public handle (3-30 chars, lower-cased).
//     Memberships, messages and group ownership reference users by UserID.

// User is the identity anchor. One document per (email, provider).
//
// NOTE:
//   - UserID is empty until the user picks one, and immutable after that.
//   - Calendar tokens are persisted but never serialized to JSON.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"`
	Provider string             `bson:"provider" json:"provider"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`

	Status         UserStatus      `bson:"status" json:"status"`
	StudyStats     StudyStats      `bson:"study_stats" json:"study_stats"`
	FocusSession   FocusSession    `bson:"focus_session" json:"focus_session"`
	FavoritePlaces []FavoritePlace `bson:"favorite_places,omitempty" json:"favorite_places,omitempty"`

	GoogleCalendar *CalendarConnection `bson:"google_calendar,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasUserID reports whether the user has already claimed a handle.
func (u User) HasUserID() bool { return u.UserID != "" }

// Presence states.
const (
	StatusStudying = "studying"
	StatusBusy     = "busy"
	StatusOffline  = "offline"
)

// IsValidStatus reports whether s is one of the presence states.
func IsValidStatus(s string) bool {
	switch s {
	case StatusStudying, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type UserStatus struct {
	State     string    `bson:"state" json:"state"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// StudyStats are the per-user counters, mirrored per membership on GroupMember.
type StudyStats struct {
	TodayMinutes int         `bson:"today_minutes" json:"today_minutes"`
	WeekMinutes  int         `bson:"week_minutes" json:"week_minutes"`
	Weekly       WeeklyStudy `bson:"weekly" json:"weekly"`
	WeekStart    time.Time   `bson:"week_start,omitempty" json:"week_start,omitempty"`
	Day          string      `bson:"day,omitempty" json:"-"` // YYYY-MM-DD that TodayMinutes belongs to
	TotalMinutes int         `bson:"total_minutes" json:"total_minutes"`
}

// FocusSession is the user's current timed study block.
type FocusSession struct {
	IsActive       bool       `bson:"is_active" json:"is_active"`
	StartedAt      *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	TargetDuration int        `bson:"target_duration,omitempty" json:"target_duration,omitempty"` // minutes
	SessionType    string     `bson:"session_type,omitempty" json:"session_type,omitempty"`
}

type FavoritePlace struct {
	Name    string  `bson:"name" json:"name"`
	Address string  `bson:"address,omitempty" json:"address,omitempty"`
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
}

// CalendarConnection holds Google Calendar OAuth tokens. Sync is handled elsewhere.
type CalendarConnection struct {
	AccessToken  string    `bson:"access_token"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	Expiry       time.Time `bson:"expiry"`
	CalendarID   string    `bson:"calendar_id,omitempty"`
}
