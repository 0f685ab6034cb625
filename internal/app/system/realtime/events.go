// Package realtime fans group events out to connected websocket clients.
//
// Events are hints: the store is the source of truth and clients re-fetch
// after a reconnect. Publishing never blocks on a slow client.
package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType names an event kind.
type EventType string

const (
	EventNewMessage      EventType = "new-message"
	EventLocationUpdated EventType = "location-updated"
	EventLocationCleared EventType = "location-cleared"
	EventMemberJoined    EventType = "member-joined"
	EventMemberLeft      EventType = "member-left"
	EventFocusStarted    EventType = "focus-started"
	EventFocusStopped    EventType = "focus-stopped"
)

const channelPrefix = "group-"

// Channel returns the channel name for a group.
func Channel(groupID primitive.ObjectID) string {
	return channelPrefix + groupID.Hex()
}

// ParseChannel is the inverse of Channel.
func ParseChannel(name string) (primitive.ObjectID, bool) {
	hex, ok := strings.CutPrefix(name, channelPrefix)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	return id, err == nil
}

// Event is the envelope delivered to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event for the group's channel.
func NewEvent(typ EventType, groupID primitive.ObjectID, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Channel:   Channel(groupID),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must return promptly.
// Unsubscribe stops delivery of a group's events to a user who is no
// longer a member.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Unsubscribe(ctx context.Context, userID string, groupID primitive.ObjectID) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Unsubscribe(context.Context, string, primitive.ObjectID) error { return nil }

// Recorder keeps published events in memory. If Err is set, Publish
// records nothing and returns it.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	evicted []string
	Err     error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Unsubscribe(_ context.Context, userID string, groupID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, userID+"@"+Channel(groupID))
	return nil
}

// Evicted lists the unsubscribes seen so far as "user@channel".
func (r *Recorder) Evicted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.evicted...)
}

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of one kind.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
