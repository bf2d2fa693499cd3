// Package policy governs the two-phase tool confirmation protocol:
// creating pending actions, parsing YES/NO confirmations, and resolving
// a confirmation against the most recent pending action in a chat.
package policy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamdatt/nexus/internal/assistant/store"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// DefaultTTL is the default lifetime of a pending action before a
// confirmation is no longer honored.
const DefaultTTL = 10 * time.Minute

var yes = map[string]struct{}{
	"y": {}, "yes": {}, "approve": {}, "confirm": {}, "proceed": {},
}

var no = map[string]struct{}{
	"n": {}, "no": {}, "deny": {}, "cancel": {}, "stop": {},
}

// Engine creates and resolves pending actions against the durable store.
// It holds no state of its own.
type Engine struct {
	store *store.Store
	now   func() time.Time
}

// New builds an Engine backed by the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s, now: time.Now}
}

// CreatePendingAction persists a new pending confirmation for a
// side-effecting tool call, defaulting to a 10-minute TTL.
func (e *Engine) CreatePendingAction(ctx context.Context, chatID, toolName string, risk types.RiskLevel, args map[string]any, ttl time.Duration) (types.PendingAction, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if risk != types.RiskLow && risk != types.RiskMedium && risk != types.RiskHigh {
		risk = types.RiskMedium
	}

	now := e.now()
	pa := types.PendingAction{
		ActionID:  uuid.NewString(),
		ToolName:  toolName,
		RiskLevel: risk,
		ExpiresAt: now.Add(ttl),
		ProposedArgs: types.ProposedAction{
			Tool: toolName,
			Args: args,
		},
		Status:    types.PendingStatusPending,
		ChatID:    chatID,
		CreatedAt: now,
	}
	if err := e.store.InsertPendingAction(ctx, pa); err != nil {
		return types.PendingAction{}, err
	}
	return pa, nil
}

// ParseConfirmation classifies free text as an approval, a denial, or
// neither. The whole message is trimmed and lowercased before lookup.
func ParseConfirmation(text string) (status types.PendingStatus, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if _, isYes := yes[lowered]; isYes {
		return types.PendingStatusApproved, true
	}
	if _, isNo := no[lowered]; isNo {
		return types.PendingStatusDenied, true
	}
	return "", false
}

// ErrNotAConfirmation indicates text did not parse as YES/NO.
var ErrNotAConfirmation = errors.New("policy: not a confirmation")

// ResolvePendingActionFromText classifies the text, looks up the latest
// pending action for the chat, lazily expires it if its TTL has
// passed, and otherwise
// transition it to the parsed decision.
//
// Returns (action, true, nil) when a pending action was resolved, and
// (zero, false, nil) when there was nothing to resolve (not a
// confirmation, no pending action, or the action just expired).
func (e *Engine) ResolvePendingActionFromText(ctx context.Context, chatID, text string) (types.PendingAction, bool, error) {
	decision, ok := ParseConfirmation(text)
	if !ok {
		return types.PendingAction{}, false, nil
	}

	pending, err := e.store.GetLatestPendingAction(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PendingAction{}, false, nil
		}
		return types.PendingAction{}, false, err
	}

	if e.now().After(pending.ExpiresAt) {
		if err := e.store.UpdatePendingStatus(ctx, pending.ActionID, types.PendingStatusExpired); err != nil {
			return types.PendingAction{}, false, err
		}
		return types.PendingAction{}, false, nil
	}

	if err := e.store.UpdatePendingStatus(ctx, pending.ActionID, decision); err != nil {
		return types.PendingAction{}, false, err
	}
	pending.Status = decision
	return pending, true, nil
}
