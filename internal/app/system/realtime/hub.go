package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/metrics"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
	authorizeWait  = 5 * time.Second
)

// ErrClosed is returned by a hub that has been shut down.
var ErrClosed = errors.New("realtime: hub closed")

// Authorizer decides whether userID may subscribe to the group's channel.
// A nil error allows it.
type Authorizer func(ctx context.Context, userID string, groupID primitive.ObjectID) error

// Hub tracks websocket clients and their channel subscriptions.
type Hub struct {
	log       *zap.Logger
	authorize Authorizer
	upgrader  websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	channels map[string]map[*client]struct{}
	closed   bool
}

// NewHub creates an empty hub.
func NewHub(authorize Authorizer, logger *zap.Logger) *Hub {
	return &Hub{
		log:       logger,
		authorize: authorize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:  make(map[*client]struct{}),
		channels: make(map[string]map[*client]struct{}),
	}
}

// CheckOrigin replaces the default same-origin check on upgrade.
func (h *Hub) CheckOrigin(fn func(r *http.Request) bool) { h.upgrader.CheckOrigin = fn }

// Publish sends ev to every subscriber of ev.Channel. Clients whose send
// buffer is full are disconnected; they resync on reconnect.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.channels[ev.Channel] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow realtime client", zap.String("user_id", c.userID))
		h.unregister(c)
	}
	return nil
}

// Serve upgrades the request and blocks until the connection ends.
// userID is the caller's handle; every subscription is checked against it.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer), subs: map[string]bool{}}
	if !h.register(c) {
		_ = conn.Close()
		return ErrClosed
	}

	go c.writePump()
	c.readPump(context.WithoutCancel(r.Context()))
	return nil
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.ConnectionOpened()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for ch := range c.subs {
		h.removeSub(ch, c)
	}
	close(c.send)
	metrics.ConnectionClosed()
}

func (h *Hub) subscribe(ctx context.Context, c *client, channel string) error {
	groupID, ok := ParseChannel(channel)
	if !ok {
		return apperr.GroupNotFound
	}
	if h.authorize != nil {
		actx, cancel := context.WithTimeout(ctx, authorizeWait)
		defer cancel()
		if err := h.authorize(actx, c.userID, groupID); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return ErrClosed
	}
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.subs[channel] = true
	return nil
}

// Unsubscribe drops every subscription userID holds on channel and tells
// the affected clients. It returns how many connections were evicted.
func (h *Hub) Unsubscribe(userID, channel string) int {
	var evicted []*client
	h.mu.Lock()
	for c := range h.channels[channel] {
		if c.userID == userID {
			evicted = append(evicted, c)
		}
	}
	for _, c := range evicted {
		delete(c.subs, channel)
		h.removeSub(channel, c)
	}
	h.mu.Unlock()

	for _, c := range evicted {
		c.reply(controlMessage{Type: "unsubscribed", Channel: channel, Reason: apperr.NotMember.Reason})
	}
	return len(evicted)
}

func (h *Hub) unsubscribe(c *client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.subs, channel)
	h.removeSub(channel, c)
}

// removeSub requires h.mu held.
func (h *Hub) removeSub(channel string, c *client) {
	if subs := h.channels[channel]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}
