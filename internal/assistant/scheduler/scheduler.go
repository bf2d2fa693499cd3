// Package scheduler parses the when-grammar, runs recurring and
// one-shot reminders on a ticker, and rehydrates jobs from the durable
// store on startup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamdatt/nexus/internal/assistant/store"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// DefaultTickInterval is fine-grained enough that a reminder fires
// within the same minute it's due.
const DefaultTickInterval = 30 * time.Second

// FireFunc is invoked when a job fires, with the chat to notify and
// the reminder text.
type FireFunc func(ctx context.Context, chatID, text string)

type scheduledJob struct {
	job     types.Job
	trigger Trigger
}

// Scheduler owns the in-memory trigger set mirrored against store.Store.
type Scheduler struct {
	mu           sync.Mutex
	store        *store.Store
	location     *time.Location
	onFire       FireFunc
	now          func() time.Time
	tickInterval time.Duration
	logger       *slog.Logger

	jobs map[string]*scheduledJob

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval overrides the fire-loop tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithLogger overrides the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Scheduler backed by s, firing into onFire on its
// configured location (defaulting to UTC).
func New(s *store.Store, location *time.Location, onFire FireFunc, opts ...Option) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	sched := &Scheduler{
		store:        s,
		location:     location,
		onFire:       onFire,
		now:          time.Now,
		tickInterval: DefaultTickInterval,
		logger:       slog.Default().With("component", "scheduler"),
		jobs:         make(map[string]*scheduledJob),
	}
	for _, opt := range opts {
		opt(sched)
	}
	return sched
}

// Schedule parses when, persists a new job, and installs its trigger.
func (s *Scheduler) Schedule(ctx context.Context, chatID, when, text string) (types.Job, string, error) {
	trigger, err := ParseWhen(when, s.location)
	if err != nil {
		return types.Job{}, "", err
	}

	now := s.now()
	next, ok := trigger.Next(now)
	kind := types.JobKindCron
	if trigger.Kind == KindDate {
		kind = types.JobKindDate
	}

	job := types.Job{
		JobID:     uuid.NewString(),
		ChatID:    chatID,
		Spec:      types.JobSpec{When: when, Text: text, Kind: kind},
		CreatedAt: now,
	}
	if ok {
		job.NextRunAt = &next
	}

	if err := s.store.UpsertJob(ctx, job); err != nil {
		return types.Job{}, "", err
	}

	s.mu.Lock()
	s.jobs[job.JobID] = &scheduledJob{job: job, trigger: trigger}
	s.mu.Unlock()

	return job, trigger.Summary, nil
}

// Update reparses when and reinstalls jobID's trigger in place,
// preserving its identity and owning chat.
func (s *Scheduler) Update(ctx context.Context, jobID, when, text string) (types.Job, string, error) {
	existing, err := s.Get(jobID)
	if err != nil {
		return types.Job{}, "", err
	}

	trigger, err := ParseWhen(when, s.location)
	if err != nil {
		return types.Job{}, "", err
	}

	now := s.now()
	next, ok := trigger.Next(now)
	kind := types.JobKindCron
	if trigger.Kind == KindDate {
		kind = types.JobKindDate
	}

	job := types.Job{
		JobID:     jobID,
		ChatID:    existing.ChatID,
		Spec:      types.JobSpec{When: when, Text: text, Kind: kind},
		CreatedAt: existing.CreatedAt,
	}
	if ok {
		job.NextRunAt = &next
	}

	if err := s.store.UpsertJob(ctx, job); err != nil {
		return types.Job{}, "", err
	}

	s.mu.Lock()
	s.jobs[jobID] = &scheduledJob{job: job, trigger: trigger}
	s.mu.Unlock()

	return job, trigger.Summary, nil
}

// Cancel removes a job from the store and the in-memory trigger set.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
	return s.store.DeleteJob(ctx, jobID)
}

// List returns jobs for a chat (or every job, when chatID is empty).
func (s *Scheduler) List(ctx context.Context, chatID string) ([]types.Job, error) {
	return s.store.ListJobs(ctx, chatID)
}

// RestoreJobs loads every persisted job, reparses its when-string, and
// reinstalls its trigger. Returns (loaded, failed) counts.
func (s *Scheduler) RestoreJobs(ctx context.Context) (int, int, error) {
	jobs, err := s.store.ListJobs(ctx, "")
	if err != nil {
		return 0, 0, err
	}

	loaded, failed := 0, 0
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		trigger, err := ParseWhen(job.Spec.When, s.location)
		if err != nil {
			s.logger.Warn("scheduler: failed to restore job", "job_id", job.JobID, "error", err)
			failed++
			continue
		}
		s.jobs[job.JobID] = &scheduledJob{job: job, trigger: trigger}
		loaded++
	}
	return loaded, failed, nil
}

// Run drains due jobs on a ticker until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.fireDue(ctx)
			}
		}
	}()
}

// Wait blocks until the fire loop goroutine has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, sj := range s.jobs {
		if sj.job.NextRunAt != nil && !now.Before(*sj.job.NextRunAt) {
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.fire(ctx, sj, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, sj *scheduledJob, now time.Time) {
	if s.onFire != nil {
		s.onFire(ctx, sj.job.ChatID, sj.job.Spec.Text)
	}

	if sj.trigger.Kind == KindDate {
		if err := s.store.DeleteJob(ctx, sj.job.JobID); err != nil {
			s.logger.Warn("scheduler: failed to delete one-shot job", "job_id", sj.job.JobID, "error", err)
		}
		s.mu.Lock()
		delete(s.jobs, sj.job.JobID)
		s.mu.Unlock()
		return
	}

	next, ok := sj.trigger.Next(now)
	s.mu.Lock()
	if ok {
		sj.job.NextRunAt = &next
	} else {
		sj.job.NextRunAt = nil
	}
	s.mu.Unlock()

	if err := s.store.UpdateJobSpecNextRun(ctx, sj.job.JobID, sj.job.Spec, sj.job.NextRunAt); err != nil {
		s.logger.Warn("scheduler: failed to persist next run", "job_id", sj.job.JobID, "error", err)
	}
}

// RunOnce fires every due job immediately (for tests).
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	due := make([]*scheduledJob, 0)
	for _, sj := range s.jobs {
		if sj.job.NextRunAt != nil && !now.Before(*sj.job.NextRunAt) {
			due = append(due, sj)
		}
	}
	s.mu.Unlock()
	for _, sj := range due {
		s.fire(ctx, sj, now)
	}
	return len(due)
}

var errJobNotFound = errors.New("scheduler: job not found")

// Get returns a job's in-memory record, if any is installed.
func (s *Scheduler) Get(jobID string) (types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.jobs[jobID]
	if !ok {
		return types.Job{}, fmt.Errorf("%w: %s", errJobNotFound, jobID)
	}
	return sj.job, nil
}
