package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	rtfeature "github.com/dalemusser/studyhub/internal/app/features/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/testutil"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// stubUsers resolves a fixed set of ObjectID hexes.
type stubUsers map[string]*auth.SessionUser

func (s stubUsers) FetchUser(_ context.Context, id string) *auth.SessionUser { return s[id] }

const kimID = "64b000000000000000000001"

func newHandler(t *testing.T) (*rtfeature.Handler, *realtime.Manager) {
	t.Helper()
	logger := zap.NewNop()
	mgr := realtime.NewManager(func() *realtime.Hub {
		return realtime.NewHub(func(context.Context, string, primitive.ObjectID) error { return nil }, logger)
	})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	users := stubUsers{kimID: {ID: kimID, UserID: "kim", Name: "Kim"}}
	return rtfeature.NewHandler(mgr, realtime.NewTickets("test-ticket-secret", time.Minute), users, logger), mgr
}

func TestHandleTicket(t *testing.T) {
	h, _ := newHandler(t)

	anon := testutil.NewRecorder()
	h.HandleTicket(anon, httptest.NewRequest("POST", "/realtime/ticket", nil))
	anon.AssertStatus(t, http.StatusUnauthorized)

	noHandle := testutil.NewRecorder()
	h.HandleTicket(noHandle, auth.WithTestUser(httptest.NewRequest("POST", "/realtime/ticket", nil), &auth.SessionUser{ID: kimID}))
	noHandle.AssertStatus(t, http.StatusForbidden)

	rec := testutil.NewRecorder()
	h.HandleTicket(rec, auth.WithTestUser(httptest.NewRequest("POST", "/realtime/ticket", nil), &auth.SessionUser{ID: kimID, UserID: "kim"}))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Ticket    string    `json:"ticket"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := rec.DecodeJSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Ticket == "" || !body.ExpiresAt.After(time.Now()) {
		t.Errorf("unexpected ticket: %+v", body)
	}
}

func TestServeWS_RejectsWithoutCredentials(t *testing.T) {
	h, _ := newHandler(t)

	for _, target := range []string{"/realtime/ws", "/realtime/ws?ticket=garbage"} {
		rec := testutil.NewRecorder()
		h.ServeWS(rec, httptest.NewRequest("GET", target, nil))
		rec.AssertStatus(t, http.StatusUnauthorized)
	}
}

func TestServeWS_TicketConnectsAndReceives(t *testing.T) {
	h, mgr := newHandler(t)
	srv := httptest.NewServer(rtfeature.Routes(h))
	t.Cleanup(srv.Close)

	ticket, _, err := h.Tickets.Issue(kimID)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?ticket=" + ticket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	gid := primitive.NewObjectID()
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "channel": realtime.Channel(gid)}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ack map[string]string
	if err := conn.ReadJSON(&ack); err != nil || ack["type"] != "subscribed" {
		t.Fatalf("ack = %v, err = %v", ack, err)
	}

	if err := mgr.Publish(context.Background(), realtime.NewEvent(realtime.EventNewMessage, gid, map[string]string{"content": "hi"})); err != nil {
		t.Fatal(err)
	}
	var ev struct {
		Type    string          `json:"type"`
		Channel string          `json:"channel"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != string(realtime.EventNewMessage) || ev.Channel != realtime.Channel(gid) {
		t.Errorf("event = %+v", ev)
	}
}

func TestServeWS_AfterShutdown(t *testing.T) {
	h, mgr := newHandler(t)
	_ = mgr.Shutdown(context.Background())

	req := auth.WithTestUser(httptest.NewRequest("GET", "/realtime/ws", nil), &auth.SessionUser{ID: kimID, UserID: "kim"})
	rec := testutil.NewRecorder()
	h.ServeWS(rec, req)
	rec.AssertStatus(t, http.StatusServiceUnavailable)
	rec.AssertReason(t, "realtime_unavailable")
}
