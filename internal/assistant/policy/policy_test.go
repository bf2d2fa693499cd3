package policy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/liamdatt/nexus/internal/assistant/store"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestParseConfirmation(t *testing.T) {
	tests := []struct {
		text   string
		status types.PendingStatus
		ok     bool
	}{
		{"YES", types.PendingStatusApproved, true},
		{"  yes  ", types.PendingStatusApproved, true},
		{"proceed", types.PendingStatusApproved, true},
		{"NO", types.PendingStatusDenied, true},
		{"cancel", types.PendingStatusDenied, true},
		{"maybe", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		status, ok := ParseConfirmation(tt.text)
		if ok != tt.ok || status != tt.status {
			t.Errorf("ParseConfirmation(%q) = (%q, %v), want (%q, %v)", tt.text, status, ok, tt.status, tt.ok)
		}
	}
}

func TestResolvePendingActionFromText_Approve(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	pa, err := e.CreatePendingAction(ctx, "chat-1", "filesystem", types.RiskHigh, map[string]any{"action": "delete_file"}, 0)
	if err != nil {
		t.Fatalf("CreatePendingAction: %v", err)
	}

	resolved, ok, err := e.ResolvePendingActionFromText(ctx, "chat-1", "YES")
	if err != nil {
		t.Fatalf("ResolvePendingActionFromText: %v", err)
	}
	if !ok {
		t.Fatalf("expected resolution")
	}
	if resolved.ActionID != pa.ActionID || resolved.Status != types.PendingStatusApproved {
		t.Fatalf("unexpected resolved action: %+v", resolved)
	}
}

func TestResolvePendingActionFromText_NotAConfirmation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CreatePendingAction(ctx, "chat-1", "filesystem", types.RiskHigh, nil, 0)
	if err != nil {
		t.Fatalf("CreatePendingAction: %v", err)
	}

	_, ok, err := e.ResolvePendingActionFromText(ctx, "chat-1", "what is the weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no resolution for non-confirmation text")
	}
}

func TestResolvePendingActionFromText_Expired(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	fixedNow := time.Now()
	e.now = func() time.Time { return fixedNow }

	pa, err := e.CreatePendingAction(ctx, "chat-1", "filesystem", types.RiskHigh, nil, time.Minute)
	if err != nil {
		t.Fatalf("CreatePendingAction: %v", err)
	}

	e.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }

	_, ok, err := e.ResolvePendingActionFromText(ctx, "chat-1", "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected expired action to not resolve")
	}

	latest, err := e.store.GetLatestPendingAction(ctx, "chat-1")
	if err == nil {
		t.Fatalf("expected no pending action remains, got %+v", latest)
	}
	_ = pa
}

func TestResolvePendingActionFromText_Monotonic(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.CreatePendingAction(ctx, "chat-1", "filesystem", types.RiskHigh, nil, 0); err != nil {
		t.Fatalf("CreatePendingAction: %v", err)
	}

	if _, ok, err := e.ResolvePendingActionFromText(ctx, "chat-1", "YES"); err != nil || !ok {
		t.Fatalf("first resolution failed: ok=%v err=%v", ok, err)
	}

	// A second confirmation after resolution must find nothing pending.
	_, ok, err := e.ResolvePendingActionFromText(ctx, "chat-1", "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no pending action left to resolve twice")
	}
}
