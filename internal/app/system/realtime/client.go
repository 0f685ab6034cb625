package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client is one websocket connection. subs is guarded by hub.mu.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	subs   map[string]bool
}

// clientMessage is what browsers send: subscribe / unsubscribe requests.
type clientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// controlMessage acknowledges or rejects a client request.
type controlMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("realtime read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(controlMessage{Type: "error", Reason: "bad_request"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if err := c.hub.subscribe(ctx, c, msg.Channel); err != nil {
				c.reply(controlMessage{Type: "error", Channel: msg.Channel, Reason: apperr.As(err).Reason})
				continue
			}
			c.reply(controlMessage{Type: "subscribed", Channel: msg.Channel})
		case "unsubscribe":
			c.hub.unsubscribe(c, msg.Channel)
			c.reply(controlMessage{Type: "unsubscribed", Channel: msg.Channel})
		default:
			c.reply(controlMessage{Type: "error", Reason: "unknown_type"})
		}
	}
}

// reply queues a control message. It drops the reply rather than block.
func (c *client) reply(m controlMessage) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
