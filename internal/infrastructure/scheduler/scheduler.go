// Package scheduler runs background jobs on fixed schedules. transcriptd
// uses it for periodic autosave of the live transcript.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/transcript-hub/pkg/logger"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// Job is a unit of background work. Run receives a context that is
// cancelled when the scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule yields the run after t.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one run.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// JobInfo is a snapshot of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// Stats aggregates every run the scheduler made.
type Stats struct {
	Executions      int64
	Failures        int64
	AverageDuration time.Duration
}

type entry struct {
	job      Job
	schedule Schedule
	enabled  bool
	inFlight bool
	info     JobInfo
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures NewScheduler.
type SchedulerConfig struct {
	Logger *logger.Logger

	// Tick is how often due jobs are checked. Default: 1s
	Tick time.Duration
}

// Scheduler checks its jobs every tick and starts the ones that are due.
// A job never runs twice at the same time from the loop.
type Scheduler struct {
	logger *logger.Logger
	tick   time.Duration

	mu        sync.Mutex
	jobs      map[string]*entry
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time
	stats     Stats
	busy      time.Duration

	wg sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	if config.Tick <= 0 {
		config.Tick = time.Second
	}
	return &Scheduler{
		logger: config.Logger.With(logger.Component("scheduler")),
		tick:   config.Tick,
		jobs:   make(map[string]*entry),
	}
}

// Register adds job; its first run is one schedule step from now.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	switch {
	case job == nil:
		return ErrNilJob
	case schedule == nil:
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	e := &entry{job: job, schedule: schedule, enabled: true}
	e.info.NextRun = schedule.Next(time.Now())
	s.jobs[name] = e

	s.logger.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", e.info.NextRun),
	)
	return nil
}

// DisableJob keeps the loop from starting name until EnableJob.
func (s *Scheduler) DisableJob(name string) error { return s.setEnabled(name, false) }

// EnableJob resumes name; its next run is one schedule step from now.
func (s *Scheduler) EnableJob(name string) error { return s.setEnabled(name, true) }

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = enabled
	if enabled {
		e.info.NextRun = e.schedule.Next(time.Now())
	}
	return nil
}

// Start runs the loop until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now()

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("scheduler started", logger.Int("jobs_count", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, e := range s.claimDue(now) {
				s.wg.Add(1)
				go func(e *entry) {
					defer s.wg.Done()
					s.execute(ctx, e, false)
				}(e)
			}
		}
	}
}

// claimDue marks due jobs in flight and advances their next run.
func (s *Scheduler) claimDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*entry
	for _, e := range s.jobs {
		if e.enabled && !e.inFlight && !now.Before(e.info.NextRun) {
			e.inFlight = true
			e.info.NextRun = e.schedule.Next(now)
			due = append(due, e)
		}
	}
	return due
}

func (s *Scheduler) execute(ctx context.Context, e *entry, manual bool) JobResult {
	name := e.job.Name()
	start := time.Now()
	err := e.job.Run(ctx)
	end := time.Now()

	res := JobResult{
		JobName:     name,
		StartedAt:   start,
		CompletedAt: end,
		Duration:    end.Sub(start),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}

	s.mu.Lock()
	if !manual {
		e.inFlight = false
	}
	e.info.LastRun = start
	e.info.RunCount++
	s.stats.Executions++
	s.busy += res.Duration
	if err != nil {
		e.info.FailCount++
		s.stats.Failures++
	}
	e.info.LastResult = &res
	s.mu.Unlock()

	log := s.logger.With(logger.String("job", name), logger.Latency(res.Duration), logger.Bool("manual", manual))
	if err != nil {
		log.Error("job failed", logger.Err(err))
	} else {
		log.Debug("job completed")
	}
	return res
}

// RunNow runs name once, outside its schedule, and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	res := s.execute(ctx, e, true)
	return &res, res.Error
}

// GetJobInfo returns a snapshot of name.
func (s *Scheduler) GetJobInfo(name string) (*JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	info := e.info
	info.Name = name
	info.Description = e.job.Description()
	info.Enabled = e.enabled
	info.Schedule = e.schedule.String()
	return &info, nil
}

// Stats returns totals over every run so far.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	if st.Executions > 0 {
		st.AverageDuration = s.busy / time.Duration(st.Executions)
	}
	return st
}
