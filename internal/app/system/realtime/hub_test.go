package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func startHub(t *testing.T, allowed string) (*Hub, string) {
	t.Helper()
	hub := NewHub(func(_ context.Context, userID string, _ primitive.ObjectID) error {
		if userID != allowed {
			return apperr.NotMember
		}
		return nil
	}, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("u"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestHub_SubscribeAndReceive(t *testing.T) {
	hub, url := startHub(t, "alice")
	conn := dial(t, url+"?u=alice")

	groupID := primitive.NewObjectID()
	if err := conn.WriteJSON(clientMessage{Type: "subscribe", Channel: Channel(groupID)}); err != nil {
		t.Fatal(err)
	}
	var ack controlMessage
	readJSON(t, conn, &ack)
	if ack.Type != "subscribed" {
		t.Fatalf("ack = %+v", ack)
	}

	ev := NewEvent(EventNewMessage, groupID, map[string]string{"content": "hi"})
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	var got struct {
		ID      string            `json:"id"`
		Type    EventType         `json:"type"`
		Channel string            `json:"channel"`
		Payload map[string]string `json:"payload"`
	}
	readJSON(t, conn, &got)
	if got.ID != ev.ID || got.Type != EventNewMessage || got.Payload["content"] != "hi" {
		t.Errorf("event = %+v", got)
	}
}

func TestHub_RejectsNonMember(t *testing.T) {
	hub, url := startHub(t, "alice")
	conn := dial(t, url+"?u=mallory")

	groupID := primitive.NewObjectID()
	_ = conn.WriteJSON(clientMessage{Type: "subscribe", Channel: Channel(groupID)})

	var reply controlMessage
	readJSON(t, conn, &reply)
	if reply.Type != "error" || reply.Reason != "not_member" {
		t.Fatalf("reply = %+v", reply)
	}

	// Nothing is delivered on the rejected channel.
	_ = hub.Publish(context.Background(), NewEvent(EventNewMessage, groupID, nil))
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Errorf("unexpected delivery: %s", raw)
	}
}

func TestHub_UnsubscribeStopsDeliveryToFormerMember(t *testing.T) {
	hub, url := startHub(t, "bob")
	conn := dial(t, url+"?u=bob")

	groupID := primitive.NewObjectID()
	_ = conn.WriteJSON(clientMessage{Type: "subscribe", Channel: Channel(groupID)})
	var ack controlMessage
	readJSON(t, conn, &ack)
	if ack.Type != "subscribed" {
		t.Fatalf("ack = %+v", ack)
	}

	if n := hub.Unsubscribe("alice", Channel(groupID)); n != 0 {
		t.Errorf("evicted %d connections for a user with none", n)
	}
	if n := hub.Unsubscribe("bob", Channel(groupID)); n != 1 {
		t.Fatalf("evicted %d connections, want 1", n)
	}

	var notice controlMessage
	readJSON(t, conn, &notice)
	if notice.Type != "unsubscribed" || notice.Channel != Channel(groupID) || notice.Reason != "not_member" {
		t.Fatalf("notice = %+v", notice)
	}

	_ = hub.Publish(context.Background(), NewEvent(EventLocationUpdated, groupID, map[string]float64{"lat": 1, "lng": 2}))
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Errorf("former member received %s", raw)
	}
}

func TestHub_CloseDisconnects(t *testing.T) {
	hub, url := startHub(t, "alice")
	conn := dial(t, url+"?u=alice")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after Close", hub.ClientCount())
	}
}

func TestParseChannel(t *testing.T) {
	id := primitive.NewObjectID()
	got, ok := ParseChannel(Channel(id))
	if !ok || got != id {
		t.Errorf("ParseChannel(Channel(id)) = %v, %v", got, ok)
	}
	for _, bad := range []string{"", "group-", "group-zz", id.Hex(), "room-" + id.Hex()} {
		if _, ok := ParseChannel(bad); ok {
			t.Errorf("ParseChannel(%q) should fail", bad)
		}
	}
}
