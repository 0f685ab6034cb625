// internal/app/system/tasks/scheduler.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a periodic maintenance task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job on its own ticker until Stop.
type Scheduler struct {
	jobs    []Job
	log     *zap.Logger
	timeout time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Each run gets at most timeout.
func NewScheduler(logger *zap.Logger, timeout time.Duration, jobs ...Job) *Scheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{jobs: jobs, log: logger, timeout: timeout, stopCh: make(chan struct{})}
}

// Start launches every job with a positive interval.
func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			s.log.Info("job disabled", zap.String("job", j.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(j)
		s.log.Info("job scheduled", zap.String("job", j.Name), zap.Duration("interval", j.Interval))
	}
}

// Stop signals all loops and waits for in-flight runs.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(j)
		}
	}
}

// RunOnce runs j with the scheduler's timeout and logs a failure.
func (s *Scheduler) RunOnce(j Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := j.Run(ctx); err != nil {
		s.log.Error("job failed", zap.String("job", j.Name), zap.Error(err))
		return err
	}
	return nil
}
