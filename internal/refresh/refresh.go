// Package refresh runs periodic jobs (catalog reload, preview capture) on a
// cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "gitline/internal/log"
)

// Job is one named unit of periodic work. Jobs of a run execute in
// registration order; a failing job does not stop the following ones.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler triggers its jobs on a cron spec. Overlapping runs are skipped.
type Scheduler struct {
	spec    string
	sched   cron.Schedule
	timeout time.Duration

	mu      sync.Mutex
	jobs    []Job
	running bool
	lastRun time.Time
	lastErr error

	cron *cron.Cron
}

// New parses spec (standard 5-field cron, or descriptors such as @hourly).
// timeout bounds a single run; zero means no bound.
func New(spec string, timeout time.Duration) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, sched: sched, timeout: timeout}, nil
}

// Add registers a job.
func (s *Scheduler) Add(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Run: run})
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.sched.Next(t) }

// LastRun reports when the last run finished and its combined error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// RunOnce executes every job now. It returns the joined job errors, or
// ErrBusy when a run is already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBusy
	}
	s.running = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var errs []error
	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			appLog.Error("refresh job failed", err, "job", job.Name)
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}
		appLog.Debug("refresh job done", "job", job.Name)
	}
	err := errors.Join(errs...)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	appLog.Info("refresh run finished",
		"jobs", len(jobs),
		"failed", len(errs),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return err
}

// ErrBusy is returned by RunOnce while another run is in progress.
var ErrBusy = errors.New("refresh: run already in progress")

// Start schedules runs until ctx is cancelled. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	s.cron = cron.New()
	s.cron.Schedule(s.sched, cron.FuncJob(func() {
		if err := s.RunOnce(ctx); errors.Is(err, ErrBusy) {
			appLog.Warn("refresh skipped; previous run still active", "schedule", s.spec)
		}
	}))
	s.cron.Start()
	appLog.Info("refresh scheduler started", "schedule", s.spec, "next", s.sched.Next(time.Now()).Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}
