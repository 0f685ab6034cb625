package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/store/oauthstate"
	"github.com/dalemusser/studyhub/internal/testutil"
	"go.uber.org/zap"
)

func TestScheduler_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(zap.NewNop(), time.Second, Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}, Job{Name: "off", Run: func(context.Context) error {
		t.Error("disabled job ran")
		return nil
	}})

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	n := runs.Load()
	if n < 2 {
		t.Fatalf("runs = %d, want >= 2", n)
	}
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != n {
		t.Error("job ran after Stop")
	}
}

func TestRunOnce_TimeoutAndError(t *testing.T) {
	s := NewScheduler(zap.NewNop(), 20*time.Millisecond)
	err := s.RunOnce(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestOAuthStateCleanupJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	st := oauthstate.New(db)
	if err := st.Save(ctx, "old", "/", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(ctx, "fresh", "/", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	job := OAuthStateCleanupJob(st, zap.NewNop())
	if job.Interval != time.Hour {
		t.Errorf("Interval = %v", job.Interval)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := db.Collection("oauth_states").CountDocuments(ctx, map[string]any{})
	if n != 1 {
		t.Errorf("remaining states = %d, want 1", n)
	}
}
