package focus

import (
	"errors"
	"sync"
	"testing"
	"time"

	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/apperr"
	"github.com/dalemusser/studyhub/internal/app/system/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/sidefx"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Wednesday 4 March 2026, 15:00 UTC.
var wednesday = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

type harness struct {
	svc *Service
	db  *mongo.Database
	rec *realtime.Recorder
	fx  *sidefx.Runner
	fix *testutil.Fixtures
	at  time.Time
}

func newHarness(t *testing.T, loc *time.Location) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := &realtime.Recorder{}
	fx := sidefx.New(zap.NewNop(), time.Second)
	h := &harness{
		svc: New(db, rec, fx, loc, zap.NewNop()),
		db:  db,
		rec: rec,
		fx:  fx,
		fix: testutil.NewFixtures(t, db),
		at:  wednesday,
	}
	h.svc.now = func() time.Time { return h.at }
	return h
}

func TestStartStop_CreditsUserAndMemberships(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ann := h.fix.CreateUser(ctx, "ann", "Ann")
	g1 := h.fix.CreateGroup(ctx, "One", "ann", testutil.GroupOptions{})
	g2 := h.fix.CreateGroup(ctx, "Two", "bob", testutil.GroupOptions{})
	h.fix.AddMember(ctx, g2.ID, "ann", models.RoleMember)
	g3 := h.fix.CreateGroup(ctx, "Three", "bob", testutil.GroupOptions{RequireApproval: true})
	h.fix.AddPending(ctx, g3.ID, "ann")
	caller := testutil.SessionUserFor(ann)

	h.at = wednesday.Add(-50 * time.Minute)
	fs, err := h.svc.Start(ctx, caller, StartInput{SessionType: "pomodoro", TargetMinutes: 50})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !fs.IsActive || fs.SessionType != "pomodoro" {
		t.Errorf("session = %+v", fs)
	}
	u, _ := userstore.New(h.db).GetByID(ctx, ann.ID)
	if u.Status.State != models.StatusStudying {
		t.Errorf("status = %q, want studying", u.Status.State)
	}

	h.at = wednesday.Add(30 * time.Second)
	res, err := h.svc.Stop(ctx, caller)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Minutes != 50 {
		t.Errorf("Minutes = %d, want 50", res.Minutes)
	}

	u, _ = userstore.New(h.db).GetByID(ctx, ann.ID)
	st := u.StudyStats
	if st.Weekly.Wednesday != 50 || st.TodayMinutes != 50 || st.WeekMinutes != 50 || st.TotalMinutes != 50 {
		t.Errorf("user stats = %+v", st)
	}
	if u.FocusSession.IsActive || u.Status.State != models.StatusOffline {
		t.Errorf("after stop: focus %+v status %q", u.FocusSession, u.Status.State)
	}

	ms := membershipstore.New(h.db)
	for _, row := range []struct {
		name string
		m    models.GroupMember
	}{
		{"owner row", mustGet(t, ms, g1.ID, "ann")},
		{"member row", mustGet(t, ms, g2.ID, "ann")},
	} {
		if row.m.WeeklyStudy.Wednesday != 50 || row.m.TotalStudyMinutes != 50 {
			t.Errorf("%s = %+v / %d", row.name, row.m.WeeklyStudy, row.m.TotalStudyMinutes)
		}
	}
	if p := mustGet(t, ms, g3.ID, "ann"); p.TotalStudyMinutes != 0 {
		t.Errorf("pending row credited: %d", p.TotalStudyMinutes)
	}

	h.fx.Wait()
	if n := len(h.rec.OfType(realtime.EventFocusStarted)); n != 2 {
		t.Errorf("focus-started events = %d, want 2", n)
	}
	if n := len(h.rec.OfType(realtime.EventFocusStopped)); n != 2 {
		t.Errorf("focus-stopped events = %d, want 2", n)
	}

	if _, err := h.svc.Stop(ctx, caller); !errors.Is(err, apperr.FocusNotActive) {
		t.Errorf("second stop err = %v", err)
	}
}

func TestStop_CreditFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ann := h.fix.CreateUser(ctx, "ann", "Ann")
	g := h.fix.CreateGroup(ctx, "Retry", "ann", testutil.GroupOptions{})
	caller := testutil.SessionUserFor(ann)

	attempts := map[string]int{}
	var mu sync.Mutex
	h.svc.beforeCredit = func(part string) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[part]++
		if part == "user" && attempts[part] == 1 {
			return errors.New("write timed out")
		}
		return nil
	}

	h.at = wednesday.Add(-20 * time.Minute)
	if _, err := h.svc.Start(ctx, caller, StartInput{}); err != nil {
		t.Fatal(err)
	}
	h.at = wednesday
	res, err := h.svc.Stop(ctx, caller)
	if err != nil {
		t.Fatalf("Stop should succeed when a credit write fails: %v", err)
	}
	if res.Minutes != 20 {
		t.Errorf("Minutes = %d, want 20", res.Minutes)
	}

	h.fx.Wait()
	mu.Lock()
	if attempts["user"] != 2 || attempts["member"] != 1 {
		t.Errorf("attempts = %v, want user 2 member 1", attempts)
	}
	mu.Unlock()

	u, _ := userstore.New(h.db).GetByID(ctx, ann.ID)
	if u.StudyStats.TotalMinutes != 20 {
		t.Errorf("user total = %d, want 20 credited once", u.StudyStats.TotalMinutes)
	}
	if m := mustGet(t, membershipstore.New(h.db), g.ID, "ann"); m.TotalStudyMinutes != 20 {
		t.Errorf("member total = %d, want 20", m.TotalStudyMinutes)
	}
}

func TestStop_ResetsStaleWeek(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ann := h.fix.CreateUser(ctx, "ann", "Ann")
	g := h.fix.CreateGroup(ctx, "Weeks", "ann", testutil.GroupOptions{})
	lastWeek := models.WeekStart(wednesday).AddDate(0, 0, -7)
	h.fix.SetStudy(ctx, g.ID, "ann", models.WeeklyStudy{Monday: 100, Wednesday: 7}, lastWeek, 100)

	caller := testutil.SessionUserFor(ann)
	h.at = wednesday.Add(-20 * time.Minute)
	if _, err := h.svc.Start(ctx, caller, StartInput{}); err != nil {
		t.Fatal(err)
	}
	h.at = wednesday
	if _, err := h.svc.Stop(ctx, caller); err != nil {
		t.Fatal(err)
	}

	m := mustGet(t, membershipstore.New(h.db), g.ID, "ann")
	if (m.WeeklyStudy != models.WeeklyStudy{Wednesday: 20}) {
		t.Errorf("weekly = %+v, want only wednesday=20", m.WeeklyStudy)
	}
	if m.TotalStudyMinutes != 120 {
		t.Errorf("total = %d, want 120", m.TotalStudyMinutes)
	}
	if !m.WeekStart.Equal(models.WeekStart(wednesday)) {
		t.Errorf("week_start = %v", m.WeekStart)
	}
}

func TestStop_BucketsInStatsTimezone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	h := newHarness(t, est)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ann := h.fix.CreateUser(ctx, "ann", "Ann")
	g := h.fix.CreateGroup(ctx, "Late", "ann", testutil.GroupOptions{})
	caller := testutil.SessionUserFor(ann)

	// 03:00 UTC Wednesday is 22:00 Tuesday in EST.
	stop := time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)
	h.at = stop.Add(-15 * time.Minute)
	if _, err := h.svc.Start(ctx, caller, StartInput{}); err != nil {
		t.Fatal(err)
	}
	h.at = stop
	if _, err := h.svc.Stop(ctx, caller); err != nil {
		t.Fatal(err)
	}

	m := mustGet(t, membershipstore.New(h.db), g.ID, "ann")
	if m.WeeklyStudy.Tuesday != 15 || m.WeeklyStudy.Wednesday != 0 {
		t.Errorf("weekly = %+v, want tuesday=15", m.WeeklyStudy)
	}
}

func TestStart_Validation(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	caller := testutil.SessionUserFor(h.fix.CreateUser(ctx, "ann", "Ann"))
	for _, n := range []int{-1, MaxTargetMinutes + 1} {
		if _, err := h.svc.Start(ctx, caller, StartInput{TargetMinutes: n}); !errors.Is(err, apperr.InvalidFocus) {
			t.Errorf("target %d: err = %v", n, err)
		}
	}
	fs, err := h.svc.Start(ctx, caller, StartInput{SessionType: "  "})
	if err != nil || fs.SessionType != DefaultSessionType {
		t.Errorf("default type = %+v, %v", fs, err)
	}
}

func TestSetStatus(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ann := h.fix.CreateUser(ctx, "ann", "Ann")
	caller := testutil.SessionUserFor(ann)

	if err := h.svc.SetStatus(ctx, caller, "Busy"); err != nil {
		t.Fatal(err)
	}
	u, _ := userstore.New(h.db).GetByID(ctx, ann.ID)
	if u.Status.State != models.StatusBusy {
		t.Errorf("state = %q", u.Status.State)
	}
	if err := h.svc.SetStatus(ctx, caller, "sleeping"); !errors.Is(err, apperr.InvalidStatus) {
		t.Errorf("err = %v", err)
	}
}

func mustGet(t *testing.T, s *membershipstore.Store, gid primitive.ObjectID, userID string) models.GroupMember {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	m, err := s.Get(ctx, gid, userID)
	if err != nil {
		t.Fatalf("Get(%s): %v", userID, err)
	}
	return m
}
