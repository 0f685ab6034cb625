package ranking

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wednesday 4 March 2026.
var now = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, topN int) (*Service, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	s := New(db, time.UTC, topN)
	s.now = func() time.Time { return now }
	return s, testutil.NewFixtures(t, db)
}

func names(b Board) []string {
	out := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in, want string
		err      bool
	}{
		{"", Week, false},
		{"today", Today, false},
		{" WEEK ", Week, false},
		{"month", Month, false},
		{"year", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFigure(t *testing.T) {
	thisWeek := models.WeekStart(now)
	m := models.GroupMember{
		WeeklyStudy:       models.WeeklyStudy{Monday: 10, Wednesday: 30, Sunday: 5},
		WeekStart:         thisWeek,
		TotalStudyMinutes: 400,
	}
	if got := Figure(m, Today, now); got != 30 {
		t.Errorf("today = %d, want 30", got)
	}
	if got := Figure(m, Week, now); got != 45 {
		t.Errorf("week = %d, want 45", got)
	}
	if got := Figure(m, Month, now); got != 400 {
		t.Errorf("month = %d, want 400", got)
	}

	m.WeekStart = thisWeek.AddDate(0, 0, -7)
	if got := Figure(m, Week, now); got != 0 {
		t.Errorf("stale week = %d, want 0", got)
	}
	if got := Figure(models.GroupMember{}, Today, now); got != 0 {
		t.Errorf("missing counters = %d, want 0", got)
	}
}

func TestRank_TodayUsesOnlyTodaysBucket(t *testing.T) {
	svc, fx := newService(t, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := models.WeekStart(now)
	fx.CreateUser(ctx, "ann", "Ann")
	fx.CreateUser(ctx, "ben", "Ben")
	g := fx.CreateGroup(ctx, "Board", "ann", testutil.GroupOptions{})
	fx.AddMember(ctx, g.ID, "ben", models.RoleMember)

	fx.SetStudy(ctx, g.ID, "ann", models.WeeklyStudy{Wednesday: 30}, ws, 30)
	fx.SetStudy(ctx, g.ID, "ben", models.WeeklyStudy{Monday: 100, Wednesday: 20}, ws, 120)

	b, err := svc.Rank(ctx, "ann", g.ID, Today, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(b); len(got) != 2 || got[0] != "ann" {
		t.Fatalf("today order = %v", got)
	}
	if b.Entries[0].Minutes != 30 || b.Entries[0].Name != "Ann" {
		t.Errorf("first = %+v", b.Entries[0])
	}

	// Another day's bucket does not move today's board.
	fx.SetStudy(ctx, g.ID, "ben", models.WeeklyStudy{Monday: 900, Wednesday: 20}, ws, 920)
	b, _ = svc.Rank(ctx, "ann", g.ID, Today, 0)
	if got := names(b); got[0] != "ann" || b.Entries[1].Minutes != 20 {
		t.Errorf("after monday change = %v %+v", got, b.Entries)
	}

	b, _ = svc.Rank(ctx, "ann", g.ID, Week, 0)
	if got := names(b); got[0] != "ben" || b.Entries[0].Minutes != 920 {
		t.Errorf("week = %v %+v", got, b.Entries)
	}
	b, _ = svc.Rank(ctx, "ann", g.ID, "", 0)
	if b.Period != Week {
		t.Errorf("default period = %q", b.Period)
	}
}

func TestRank_MonthIsLifetimeTotal(t *testing.T) {
	svc, fx := newService(t, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Long", "ann", testutil.GroupOptions{})
	fx.AddMember(ctx, g.ID, "ben", models.RoleMember)
	old := models.WeekStart(now).AddDate(0, 0, -28)
	fx.SetStudy(ctx, g.ID, "ann", models.WeeklyStudy{Monday: 50}, models.WeekStart(now), 50)
	fx.SetStudy(ctx, g.ID, "ben", models.WeeklyStudy{Monday: 500}, old, 5000)

	b, err := svc.Rank(ctx, "ann", g.ID, Month, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(b); got[0] != "ben" || b.Entries[0].Minutes != 5000 {
		t.Errorf("month = %v %+v", got, b.Entries)
	}
	b, _ = svc.Rank(ctx, "ann", g.ID, Week, 0)
	if got := names(b); got[0] != "ann" || b.Entries[1].Minutes != 0 {
		t.Errorf("week with stale buckets = %v %+v", got, b.Entries)
	}
}

func TestRank_TopNAndCallerOutside(t *testing.T) {
	svc, fx := newService(t, 2)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ws := models.WeekStart(now)
	g := fx.CreateGroup(ctx, "Crowd", "a", testutil.GroupOptions{})
	fx.SetStudy(ctx, g.ID, "a", models.WeeklyStudy{Tuesday: 40}, ws, 40)
	for i, id := range []string{"b", "c", "d"} {
		fx.AddMember(ctx, g.ID, id, models.RoleMember)
		fx.SetStudy(ctx, g.ID, id, models.WeeklyStudy{Tuesday: 30 - 10*i}, ws, 30-10*i)
	}
	fx.CreateUser(ctx, "d", "Dee")

	b, err := svc.Rank(ctx, "d", g.ID, Week, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(b); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("top = %v", got)
	}
	if b.Me == nil || b.Me.Rank != 4 || b.Me.Minutes != 10 || b.Me.Name != "Dee" {
		t.Errorf("me = %+v", b.Me)
	}

	b, _ = svc.Rank(ctx, "d", g.ID, Week, 3)
	if len(b.Entries) != 3 {
		t.Errorf("explicit topN = %d entries", len(b.Entries))
	}
}

func TestRank_Ties(t *testing.T) {
	svc, fx := newService(t, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Even", "first", testutil.GroupOptions{})
	time.Sleep(5 * time.Millisecond)
	fx.AddMember(ctx, g.ID, "second", models.RoleMember)

	b, err := svc.Rank(ctx, "second", g.ID, Today, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(b); got[0] != "first" || got[1] != "second" {
		t.Errorf("ties by join time = %v", got)
	}
	if b.Me == nil || b.Me.Rank != 2 || b.Me.Minutes != 0 {
		t.Errorf("me = %+v", b.Me)
	}
}

func TestRank_Gate(t *testing.T) {
	svc, fx := newService(t, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	g := fx.CreateGroup(ctx, "Private Board", "ann", testutil.GroupOptions{})
	if b, err := svc.Rank(ctx, "out", g.ID, Week, 0); !errors.Is(err, apperr.NotMember) || b.Entries != nil {
		t.Errorf("non-member = %+v, %v", b, err)
	}
	if _, err := svc.Rank(ctx, "ann", primitive.NewObjectID(), Week, 0); !errors.Is(err, apperr.GroupNotFound) {
		t.Errorf("unknown group err = %v", err)
	}
	if _, err := svc.Rank(ctx, "ann", g.ID, "decade", 0); !errors.Is(err, apperr.InvalidPeriod) {
		t.Errorf("bad period err = %v", err)
	}
	// Membership is checked before the query is.
	if _, err := svc.Rank(ctx, "out", g.ID, "decade", 0); !errors.Is(err, apperr.NotMember) {
		t.Errorf("non-member with bad period err = %v, want not_member", err)
	}
}
