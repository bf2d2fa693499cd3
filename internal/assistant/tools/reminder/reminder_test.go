package reminder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/liamdatt/nexus/internal/assistant/scheduler"
	"github.com/liamdatt/nexus/internal/assistant/store"
)

func newTestTool(t *testing.T) Tool {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sched := scheduler.New(s, time.UTC, func(context.Context, string, string) {})
	return New(sched)
}

func TestTool_ScheduleAndList(t *testing.T) {
	tl := newTestTool(t)
	ctx := context.Background()

	res, err := tl.Run(ctx, map[string]any{"action": "schedule", "chat_id": "chat-1", "when": "every day at 08:00", "text": "standup"})
	if err != nil {
		t.Fatalf("Run schedule: %v", err)
	}
	if !res.OK {
		t.Fatalf("unexpected schedule result: %+v", res)
	}

	res, err = tl.Run(ctx, map[string]any{"action": "list", "chat_id": "chat-1"})
	if err != nil {
		t.Fatalf("Run list: %v", err)
	}
	if !res.OK {
		t.Fatalf("unexpected list result: %+v", res)
	}
}

func TestTool_ScheduleMissingWhen(t *testing.T) {
	tl := newTestTool(t)
	res, err := tl.Run(context.Background(), map[string]any{"action": "schedule", "chat_id": "chat-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OK {
		t.Fatalf("expected failure for missing when")
	}
}

func TestTool_CancelWrongChat(t *testing.T) {
	tl := newTestTool(t)
	ctx := context.Background()

	res, _ := tl.Run(ctx, map[string]any{"action": "schedule", "chat_id": "chat-1", "when": "every day at 08:00", "text": "standup"})
	jobID := jobIDFromContent(t, res.Content)

	res, err := tl.Run(ctx, map[string]any{"action": "cancel", "job_id": jobID, "chat_id": "chat-2"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.OK {
		t.Fatalf("expected cancel to be rejected for mismatched chat")
	}
}

func TestTool_Update(t *testing.T) {
	tl := newTestTool(t)
	ctx := context.Background()

	res, _ := tl.Run(ctx, map[string]any{"action": "schedule", "chat_id": "chat-1", "when": "every day at 08:00", "text": "standup"})
	jobID := jobIDFromContent(t, res.Content)

	res, err := tl.Run(ctx, map[string]any{"action": "update", "job_id": jobID, "when": "every day at 09:00"})
	if err != nil {
		t.Fatalf("Run update: %v", err)
	}
	if !res.OK {
		t.Fatalf("unexpected update result: %+v", res)
	}
}

func jobIDFromContent(t *testing.T, content string) string {
	t.Helper()
	// "Scheduled job <id> (...)"
	const prefix = "Scheduled job "
	if len(content) < len(prefix) {
		t.Fatalf("unexpected schedule content: %q", content)
	}
	rest := content[len(prefix):]
	for i, r := range rest {
		if r == ' ' {
			return rest[:i]
		}
	}
	t.Fatalf("could not extract job id from: %q", content)
	return ""
}
