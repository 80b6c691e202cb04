// Package jobs runs the service's periodic background work.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler runs each registered job on its own ticker goroutine. Jobs are
// expected to be idempotent; a failed run is logged and retried on the next
// tick rather than immediately.
type Scheduler struct {
	jobs []Job
	log  *slog.Logger
	wg   sync.WaitGroup
}

// NewScheduler returns an empty scheduler.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{log: log}
}

// Register adds a job. Call before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
	s.log.Debug("job registered",
		slog.String("job_name", job.Name()),
		slog.Duration("interval", job.Interval()),
	)
}

// Start launches every registered job. Jobs stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.jobs) == 0 {
		s.log.Warn("no jobs registered, scheduler idle")
		return
	}

	s.log.Info("starting job scheduler", slog.Int("jobs_count", len(s.jobs)))
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}
}

// Wait blocks until all job loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("job stopped", slog.String("job_name", job.Name()))
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce executes a single tick with panic isolation so one broken job
// cannot take down its loop.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked",
				slog.String("job_name", job.Name()),
				slog.Any("panic", r),
			)
		}
	}()

	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("job run failed",
			slog.String("job_name", job.Name()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.log.Debug("job run finished",
		slog.String("job_name", job.Name()),
		slog.Duration("elapsed", time.Since(started)),
	)
}
