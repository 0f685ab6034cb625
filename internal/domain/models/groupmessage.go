package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMessage is an append-only chat log entry. Never updated or deleted.
type GroupMessage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID     primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Content     string             `bson:"content" json:"content"`
	MessageType string             `bson:"message_type" json:"message_type"` // text | system
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

const (
	MessageText   = "text"
	MessageSystem = "system"

	MaxMessageLength = 2000
)

// Display is the denormalized author/member info attached to responses.
type Display struct {
	UserID string `bson:"user_id" json:"user_id"`
	Name   string `bson:"name" json:"name"`
	Image  string `bson:"image,omitempty" json:"image,omitempty"`
	Email  string `bson:"email,omitempty" json:"email,omitempty"`
}
