package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/dalemusser/studyhub/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Manager owns the process-wide hub. The hub is created on first Acquire
// and torn down when the last holder releases it or on Shutdown.
// Manager is safe for concurrent use and implements Publisher.
type Manager struct {
	newHub func() *Hub

	mu     sync.Mutex
	hub    *Hub
	refs   int
	closed bool
}

// NewManager returns a manager that builds hubs with newHub.
func NewManager(newHub func() *Hub) *Manager {
	return &Manager{newHub: newHub}
}

// Acquire returns the live hub, starting it if needed. Every successful
// Acquire must be paired with Release.
func (m *Manager) Acquire() (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.hub == nil {
		m.hub = m.newHub()
	}
	m.refs++
	return m.hub, nil
}

// Release drops one reference.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refs == 0 {
		return
	}
	m.refs--
	if m.refs == 0 && m.hub != nil {
		m.hub.Close()
		m.hub = nil
	}
}

// Publish forwards to the live hub. With no hub nobody is listening and
// the event is dropped.
func (m *Manager) Publish(ctx context.Context, ev Event) error {
	m.mu.Lock()
	h := m.hub
	m.mu.Unlock()

	var err error
	if h != nil {
		err = h.Publish(ctx, ev)
	}
	metrics.ObservePublish(string(ev.Type), err)
	return err
}

// Unsubscribe evicts userID from the group's channel on the live hub.
func (m *Manager) Unsubscribe(_ context.Context, userID string, groupID primitive.ObjectID) error {
	m.mu.Lock()
	h := m.hub
	m.mu.Unlock()
	if h != nil {
		h.Unsubscribe(userID, Channel(groupID))
	}
	return nil
}

// Serve holds the hub for the life of one websocket connection.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	h, err := m.Acquire()
	if err != nil {
		return err
	}
	defer m.Release()
	return h.Serve(w, r, userID)
}

// Shutdown closes the hub and refuses further Acquire calls.
func (m *Manager) Shutdown(context.Context) error {
	m.mu.Lock()
	h := m.hub
	m.hub = nil
	m.refs = 0
	m.closed = true
	m.mu.Unlock()

	if h != nil {
		h.Close()
	}
	return nil
}

// ClientCount reports connected clients; zero when no hub is running.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	h := m.hub
	m.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.ClientCount()
}
