// Package sidefx runs best-effort work that follows a primary write:
// real-time publishes and system messages. A task never affects the
// caller's result; its outcome is logged, counted and optionally reported
// on a channel.
package sidefx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Outcome is the result of one side effect.
type Outcome struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Runner launches side effects. The zero value is not usable; use New.
type Runner struct {
	log      *zap.Logger
	timeout  time.Duration
	outcomes chan<- Outcome
	wg       sync.WaitGroup
}

// New creates a runner whose tasks each get timeout to finish.
func New(logger *zap.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{log: logger, timeout: timeout}
}

// ReportTo delivers every outcome to ch. Sends never block: if ch is full
// the outcome is dropped (it has already been logged and counted).
func (r *Runner) ReportTo(ch chan<- Outcome) { r.outcomes = ch }

// Go runs fn in the background. The task keeps ctx's values but not its
// cancellation, so it survives the request that started it.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(context.WithoutCancel(ctx), name, fn)
	}()
}

// Do runs fn synchronously with the same isolation as Go. The returned
// Outcome is informational only.
func (r *Runner) Do(ctx context.Context, name string, fn func(ctx context.Context) error) Outcome {
	return r.run(context.WithoutCancel(ctx), name, fn)
}

// Wait blocks until all tasks started with Go have finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(ctx context.Context, name string, fn func(ctx context.Context) error) (out Outcome) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out.Name = name
	defer func() {
		if p := recover(); p != nil {
			out.Err = fmt.Errorf("panic: %v", p)
		}
		out.Duration = time.Since(start)
		r.finish(out)
	}()

	out.Err = fn(ctx)
	return out
}

func (r *Runner) finish(out Outcome) {
	metrics.ObserveSideEffect(out.Name, out.Err)
	if out.Err != nil {
		r.log.Warn("side effect failed",
			zap.String("name", out.Name),
			zap.Duration("duration", out.Duration),
			zap.Error(out.Err))
	}
	if r.outcomes != nil {
		select {
		case r.outcomes <- out:
		default:
		}
	}
}
