// Package scheduler runs the periodic refresh jobs of the content core.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often cached content is refreshed.
const DefaultInterval = 10 * time.Minute

// Job represents a scheduled task.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Scheduler runs its jobs on a fixed interval.
type Scheduler struct {
	interval  time.Duration
	immediate bool
	logger    *slog.Logger

	mu   sync.Mutex
	jobs []Job

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// RunImmediately makes Start run every job once before the first tick.
func RunImmediately() Option {
	return func(s *Scheduler) { s.immediate = true }
}

// New creates a scheduler that fires every interval. A non-positive
// interval means DefaultInterval.
func New(interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		interval: interval,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Add registers a job with the scheduler.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// RunOnce executes every registered job once. A failing job does not stop
// the ones after it; all failures are returned joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		start := time.Now()
		if err := job.Fn(ctx); err != nil {
			s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
			errs = append(errs, err)
			continue
		}
		s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}

// Start runs the scheduler loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.logger.Info("scheduler started", "interval", s.interval, "jobs", n)

	if s.immediate {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.done:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
