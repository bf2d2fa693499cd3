package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/liamdatt/nexus/internal/assistant/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type firedCall struct {
	chatID string
	text   string
}

func TestSchedule_OneShotFiresAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var fired []firedCall
	onFire := func(_ context.Context, chatID, text string) {
		mu.Lock()
		fired = append(fired, firedCall{chatID, text})
		mu.Unlock()
	}

	fixedNow := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	sched := New(s, time.UTC, onFire, WithNow(func() time.Time { return fixedNow }))

	_, _, err := sched.Schedule(ctx, "chat-1", "2024-06-15 10:01", "standup")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	sched.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	n := sched.RunOnce(ctx)
	if n != 1 {
		t.Fatalf("expected 1 job to fire, got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0].chatID != "chat-1" || fired[0].text != "standup" {
		t.Fatalf("unexpected fired calls: %+v", fired)
	}

	jobs, err := s.ListJobs(ctx, "chat-1")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected one-shot job to be deleted after firing, got %+v", jobs)
	}
}

func TestSchedule_RecurringReschedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixedNow := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) // Saturday
	sched := New(s, time.UTC, func(context.Context, string, string) {}, WithNow(func() time.Time { return fixedNow }))

	job, _, err := sched.Schedule(ctx, "chat-1", "every day at 00:00", "standup")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	sched.now = func() time.Time { return fixedNow.Add(25 * time.Hour) }
	n := sched.RunOnce(ctx)
	if n != 1 {
		t.Fatalf("expected 1 job to fire, got %d", n)
	}

	got, err := sched.Get(job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.NextRunAt == nil {
		t.Fatalf("expected recurring job to have a next run scheduled")
	}
}

func TestRestoreJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixedNow := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	sched1 := New(s, time.UTC, func(context.Context, string, string) {}, WithNow(func() time.Time { return fixedNow }))
	if _, _, err := sched1.Schedule(ctx, "chat-1", "every monday at 8:00", "standup"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	sched2 := New(s, time.UTC, func(context.Context, string, string) {}, WithNow(func() time.Time { return fixedNow }))
	loaded, failed, err := sched2.RestoreJobs(ctx)
	if err != nil {
		t.Fatalf("RestoreJobs: %v", err)
	}
	if loaded != 1 || failed != 0 {
		t.Fatalf("expected (1, 0), got (%d, %d)", loaded, failed)
	}
}

func TestCancel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sched := New(s, time.UTC, func(context.Context, string, string) {})
	job, _, err := sched.Schedule(ctx, "chat-1", "every day at 08:00", "standup")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if err := sched.Cancel(ctx, job.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := sched.Get(job.JobID); err == nil {
		t.Fatalf("expected job to be gone after cancel")
	}
}
