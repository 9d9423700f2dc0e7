package automation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultResolution is the scheduler tick when none is configured.
const DefaultResolution = 250 * time.Millisecond

// ErrSchedulerRunning is returned by Start when the scheduler is already running.
var ErrSchedulerRunning = errors.New("automation: scheduler already running")

// JobFunc is a periodic callback. It runs to completion on the scheduler
// goroutine and must not block on I/O.
type JobFunc func(ctx context.Context, now time.Time)

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	next     time.Time
}

// Scheduler drives periodic jobs cooperatively from a single goroutine.
//
// On every tick the due jobs run in registration order, one after the
// other. A job that is late by several intervals runs once, not once per
// missed interval.
//
// Thread Safety:
//   - Every, Start and Stop are safe for concurrent use.
//   - Jobs never overlap each other.
type Scheduler struct {
	resolution time.Duration
	logger     Logger

	mu   sync.Mutex
	jobs []*job

	runMu   sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler ticking at resolution.
func NewScheduler(resolution time.Duration, logger Logger) *Scheduler {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{resolution: resolution, logger: logger}
}

// Every registers fn to run every interval. An interval of zero or less
// runs the job on every tick. The first run happens on the first tick.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
}

// RunOnce runs every job due at now and returns their names.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	var due []*job
	for _, j := range s.jobs {
		if j.next.IsZero() || !now.Before(j.next) {
			due = append(due, j)
			if j.interval > 0 {
				j.next = now.Add(j.interval)
			}
		}
	}
	s.mu.Unlock()

	names := make([]string, 0, len(due))
	for _, j := range due {
		s.runJob(ctx, j, now)
		names = append(names, j.name)
	}
	return names
}

// runJob isolates a panicking job so the loop keeps running.
func (s *Scheduler) runJob(ctx context.Context, j *job, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", "job", j.name, "panic", r)
		}
	}()
	j.fn(ctx, now)
}

// Start begins ticking in a background goroutine until ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.done)

	s.logger.Info("scheduler started", "resolution", s.resolution)
	return nil
}

// Stop halts the scheduler and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.runMu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	s.RunOnce(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case now := <-ticker.C:
			s.RunOnce(ctx, now)
		}
	}
}
