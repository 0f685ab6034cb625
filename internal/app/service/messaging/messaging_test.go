package messaging

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type harness struct {
	svc *Service
	rec *realtime.Recorder
	fx  *sidefx.Runner
	fix *testutil.Fixtures
}

func newHarness(t *testing.T, limiter *ratelimit.Limiter) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := &realtime.Recorder{}
	fx := sidefx.New(zap.NewNop(), time.Second)
	return &harness{
		svc: New(db, rec, fx, limiter, zap.NewNop()),
		rec: rec,
		fx:  fx,
		fix: testutil.NewFixtures(t, db),
	}
}

func TestPost_StoresAndPublishes(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := h.fix.CreateUser(ctx, "alice", "Alice")
	g := h.fix.CreateGroup(ctx, "Chat", "alice", testutil.GroupOptions{})

	msg, err := h.svc.Post(ctx, testutil.SessionUserFor(alice), g.ID, "  hi <b>all</b>  ")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if msg.Content != "hi all" {
		t.Errorf("Content = %q, want %q", msg.Content, "hi all")
	}
	if msg.MessageType != models.MessageText || msg.User == nil || msg.User.Name != "Alice" {
		t.Errorf("message = %+v", msg)
	}

	h.fx.Wait()
	evs := h.rec.OfType(realtime.EventNewMessage)
	if len(evs) != 1 || evs[0].Channel != realtime.Channel(g.ID) {
		t.Fatalf("events = %+v", evs)
	}
}

func TestPost_Gate(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	bob := h.fix.CreateUser(ctx, "bob", "Bob")
	g := h.fix.CreateGroup(ctx, "Closed", "alice", testutil.GroupOptions{})

	if _, err := h.svc.Post(ctx, testutil.SessionUserFor(bob), g.ID, "hello"); !errors.Is(err, apperr.NotMember) {
		t.Errorf("non-member err = %v", err)
	}
	h.fix.AddPending(ctx, g.ID, "bob")
	if _, err := h.svc.Post(ctx, testutil.SessionUserFor(bob), g.ID, "hello"); !errors.Is(err, apperr.NotMember) {
		t.Errorf("pending err = %v", err)
	}
	if _, err := h.svc.Post(ctx, testutil.SessionUserFor(bob), primitive.NewObjectID(), "hello"); !errors.Is(err, apperr.GroupNotFound) {
		t.Errorf("unknown group err = %v", err)
	}
}

func TestPost_ContentRules(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := h.fix.CreateUser(ctx, "alice", "Alice")
	g := h.fix.CreateGroup(ctx, "Rules", "alice", testutil.GroupOptions{})
	caller := testutil.SessionUserFor(alice)

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"blank", "   ", apperr.EmptyMessage},
		{"markup only", "<script>alert(1)</script>", apperr.EmptyMessage},
		{"too long", strings.Repeat("a", models.MaxMessageLength+1), apperr.MessageTooLong},
		{"limit in runes", strings.Repeat("é", models.MaxMessageLength), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Post(ctx, caller, g.ID, tt.content)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected err: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPost_RateLimited(t *testing.T) {
	h := newHarness(t, ratelimit.PerMinute(2))
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := h.fix.CreateUser(ctx, "alice", "Alice")
	g := h.fix.CreateGroup(ctx, "Busy", "alice", testutil.GroupOptions{})
	caller := testutil.SessionUserFor(alice)

	for i := 0; i < 2; i++ {
		if _, err := h.svc.Post(ctx, caller, g.ID, "msg"); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	_, err := h.svc.Post(ctx, caller, g.ID, "one too many")
	if !errors.Is(err, apperr.RateLimited) {
		t.Errorf("err = %v, want rate_limited", err)
	}
}

func TestPost_PublishFailureKeepsMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.Err = errors.New("transport down")
	outcomes := make(chan sidefx.Outcome, 4)
	h.fx.ReportTo(outcomes)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := h.fix.CreateUser(ctx, "alice", "Alice")
	g := h.fix.CreateGroup(ctx, "Flaky", "alice", testutil.GroupOptions{})

	if _, err := h.svc.Post(ctx, testutil.SessionUserFor(alice), g.ID, "still here"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	h.fx.Wait()

	var failed bool
	for len(outcomes) > 0 {
		if o := <-outcomes; o.Name == "publish.new-message" && o.Err != nil {
			failed = true
		}
	}
	if !failed {
		t.Error("expected a failed publish outcome")
	}

	msgs, err := h.svc.List(ctx, "alice", g.ID, 0, 0)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "still here" {
		t.Errorf("List = %+v, %v", msgs, err)
	}
}

func TestList_NewestFirstWithAuthors(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := h.fix.CreateUser(ctx, "alice", "Alice")
	bob := h.fix.CreateUser(ctx, "bob", "Bob")
	g := h.fix.CreateGroup(ctx, "Log", "alice", testutil.GroupOptions{})
	h.fix.AddMember(ctx, g.ID, "bob", models.RoleMember)

	for _, p := range []struct {
		u    models.User
		text string
	}{{alice, "one"}, {bob, "two"}, {alice, "three"}} {
		if _, err := h.svc.Post(ctx, testutil.SessionUserFor(p.u), g.ID, p.text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.svc.AppendSystem(ctx, g.ID, "bob", "Bob joined the group"); err != nil {
		t.Fatal(err)
	}

	msgs, err := h.svc.List(ctx, "bob", g.ID, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].MessageType != models.MessageSystem || msgs[1].Content != "three" {
		t.Errorf("order = %q, %q", msgs[0].Content, msgs[1].Content)
	}
	if msgs[0].User == nil || msgs[0].User.Name != "Bob" {
		t.Errorf("system line author = %+v", msgs[0].User)
	}

	rest, _ := h.svc.List(ctx, "bob", g.ID, 10, 2)
	if len(rest) != 2 || rest[1].Content != "one" {
		t.Errorf("second page = %+v", rest)
	}
	if _, err := h.svc.List(ctx, "stranger", g.ID, 0, 0); !errors.Is(err, apperr.NotMember) {
		t.Errorf("stranger err = %v", err)
	}
}
