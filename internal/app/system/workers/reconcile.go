// internal/app/system/workers/reconcile.go
package workers

import (
	"context"
	"sync"
	"time"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studyhub/internal/app/store/memberships"
	"github.com/dalemusser/studyhub/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Groups         int `json:"groups"`
	OwnersRestored int `json:"owners_restored"`
	CountsFixed    int `json:"counts_fixed"`
}

const (
	DefaultMinAge = time.Minute
	DefaultSettle = 2 * time.Second
)

// Reconciler repairs group state left behind by a partial group creation
// or a lost count update. It restores missing owner memberships and
// recomputes member_count from active rows.
//
// Groups younger than MinAge are skipped: their creation may still be in
// flight. A count mismatch is only corrected if it is still the same
// after Settle, and the write is conditioned on the count it read.
type Reconciler struct {
	MinAge time.Duration
	Settle time.Duration

	groups   *groupstore.Store
	members  *membershipstore.Store
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReconciler creates a reconciler. An interval <= 0 disables the
// background loop; RunOnce still works.
func NewReconciler(db *mongo.Database, logger *zap.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		MinAge:   DefaultMinAge,
		Settle:   DefaultSettle,
		groups:   groupstore.New(db),
		members:  membershipstore.New(db),
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Reconciler) Start() {
	if w.interval <= 0 {
		w.log.Info("reconcile worker disabled")
		return
	}
	w.wg.Add(1)
	go w.run()
	w.log.Info("reconcile worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Reconciler) Stop() {
	if w.interval <= 0 {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("reconcile worker stopped")
}

func (w *Reconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error("reconcile failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// suspect is a group whose cached count disagreed with its rows.
type suspect struct {
	id        primitive.ObjectID
	cached, n int
}

// RunOnce performs one full pass over every group.
func (w *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	var suspects []suspect
	cutoff := time.Now().Add(-w.MinAge)

	err := w.groups.Owners(ctx, func(id primitive.ObjectID, ownerID string, cached int) error {
		if id.Timestamp().After(cutoff) {
			return nil
		}
		rep.Groups++

		if ownerID != "" {
			restored, err := w.members.EnsureOwner(ctx, id, ownerID, id.Timestamp().UTC())
			if err != nil {
				return err
			}
			if restored {
				rep.OwnersRestored++
				w.log.Warn("restored missing owner membership",
					zap.String("group_id", id.Hex()),
					zap.String("owner", ownerID))
				// The row we just wrote is not in the count we read.
				cached = -1
			}
		}

		n, err := w.members.CountActive(ctx, id)
		if err != nil {
			return err
		}
		if n != cached {
			suspects = append(suspects, suspect{id: id, cached: cached, n: n})
		}
		return nil
	})
	if err == nil {
		err = w.correct(ctx, suspects, &rep)
	}

	metrics.ObserveReconcile("owner", rep.OwnersRestored)
	metrics.ObserveReconcile("count", rep.CountsFixed)

	if err != nil {
		return rep, err
	}
	if rep.OwnersRestored > 0 || rep.CountsFixed > 0 {
		w.log.Info("reconcile pass repaired groups",
			zap.Int("groups", rep.Groups),
			zap.Int("owners_restored", rep.OwnersRestored),
			zap.Int("counts_fixed", rep.CountsFixed))
	}
	return rep, nil
}

// correct waits Settle, then rewrites each count whose mismatch has not
// moved. A join or leave between its row write and its $inc shows up as a
// transient mismatch and is left alone.
func (w *Reconciler) correct(ctx context.Context, suspects []suspect, rep *Report) error {
	if len(suspects) == 0 {
		return nil
	}
	if w.Settle > 0 {
		t := time.NewTimer(w.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	for _, sp := range suspects {
		g, err := w.groups.GetByID(ctx, sp.id)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return err
		}
		n, err := w.members.CountActive(ctx, sp.id)
		if err != nil {
			return err
		}
		if n != sp.n || (sp.cached >= 0 && g.MemberCount != sp.cached) {
			w.log.Debug("member count still moving; retry next pass", zap.String("group_id", sp.id.Hex()))
			continue
		}
		fixed, err := w.groups.SetMemberCount(ctx, sp.id, g.MemberCount, n)
		if err != nil {
			return err
		}
		if fixed {
			rep.CountsFixed++
			w.log.Info("corrected member count",
				zap.String("group_id", sp.id.Hex()),
				zap.Int("was", g.MemberCount),
				zap.Int("count", n))
		}
	}
	return nil
}
