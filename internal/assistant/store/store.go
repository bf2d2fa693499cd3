// Package store is the durable, SQLite-backed authority for messages,
// the de-duplication ledger, pending actions, scheduled jobs, and the
// audit log. All operations are serialized under a single mutex wrapping
// the database handle, because write throughput here is bounded by human
// typing speed, not disk I/O.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	trace_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS message_ledger (
	message_id TEXT PRIMARY KEY,
	direction TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_actions (
	action_id TEXT PRIMARY KEY,
	tool_name TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	proposed_args TEXT NOT NULL,
	status TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	spec TEXT NOT NULL,
	next_run_at TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL,
	event TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store is the single durable authority. It wraps a *sql.DB and a mutex
// so that every transaction it exposes is strictly serialized under a
// single writer.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates (or opens) the SQLite database file at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// InsertMessage upserts a persisted conversation turn by id.
func (s *Store) InsertMessage(ctx context.Context, m types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, channel, chat_id, sender_id, role, text, trace_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Channel), m.ChatID, m.SenderID, string(m.Role), m.Text, m.TraceID, timeStr(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit of the most recent messages for a
// chat, in chronological order.
func (s *Store) RecentMessages(ctx context.Context, chatID string, limit int) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, chat_id, sender_id, role, text, trace_id, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var m types.Message
		var channel, role, createdAt string
		if err := rows.Scan(&m.ID, &channel, &m.ChatID, &m.SenderID, &role, &m.Text, &m.TraceID, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.Channel = types.Channel(channel)
		m.Role = types.MessageRole(role)
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("store: parse message time: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ClaimLedger is the foundational at-most-once primitive: it inserts the
// given messageID iff absent and reports whether this caller is the
// owner. True exactly once per messageID across the lifetime of the
// store.
func (s *Store) ClaimLedger(ctx context.Context, messageID string, direction types.Direction, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_ledger (message_id, direction, chat_id, created_at) VALUES (?, ?, ?, ?)`,
		messageID, string(direction), chatID, timeStr(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("store: claim ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: claim ledger rows affected: %w", err)
	}
	return n > 0, nil
}

// LedgerContains reports whether messageID has been recorded in the
// ledger, optionally restricted to a direction.
func (s *Store) LedgerContains(ctx context.Context, messageID string, direction *types.Direction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		row *sql.Row
	)
	if direction != nil {
		row = s.db.QueryRowContext(ctx,
			`SELECT 1 FROM message_ledger WHERE message_id = ? AND direction = ?`, messageID, string(*direction))
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT 1 FROM message_ledger WHERE message_id = ?`, messageID)
	}

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("store: ledger contains: %w", err)
	}
	return true, nil
}

// InsertPendingAction persists a newly created pending action.
func (s *Store) InsertPendingAction(ctx context.Context, pa types.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	argsJSON, err := json.Marshal(pa.ProposedArgs)
	if err != nil {
		return fmt.Errorf("store: marshal proposed args: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_actions (action_id, tool_name, risk_level, expires_at, proposed_args, status, chat_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pa.ActionID, pa.ToolName, string(pa.RiskLevel), timeStr(pa.ExpiresAt), string(argsJSON), string(pa.Status), pa.ChatID, timeStr(pa.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert pending action: %w", err)
	}
	return nil
}

func scanPendingAction(row interface {
	Scan(dest ...any) error
}) (types.PendingAction, error) {
	var pa types.PendingAction
	var risk, expiresAt, argsJSON, status, createdAt string
	if err := row.Scan(&pa.ActionID, &pa.ToolName, &risk, &expiresAt, &argsJSON, &status, &pa.ChatID, &createdAt); err != nil {
		return types.PendingAction{}, err
	}
	pa.RiskLevel = types.RiskLevel(risk)
	pa.Status = types.PendingStatus(status)

	var err error
	if pa.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return types.PendingAction{}, fmt.Errorf("store: parse expires_at: %w", err)
	}
	if pa.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.PendingAction{}, fmt.Errorf("store: parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(argsJSON), &pa.ProposedArgs); err != nil {
		return types.PendingAction{}, fmt.Errorf("store: unmarshal proposed_args: %w", err)
	}
	return pa, nil
}

// GetLatestPendingAction returns the most recent pending_actions row for
// a chat with status = pending, or ErrNotFound if none exists.
func (s *Store) GetLatestPendingAction(ctx context.Context, chatID string) (types.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT action_id, tool_name, risk_level, expires_at, proposed_args, status, chat_id, created_at
		 FROM pending_actions WHERE chat_id = ? AND status = 'pending' ORDER BY created_at DESC LIMIT 1`,
		chatID,
	)
	pa, err := scanPendingAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PendingAction{}, ErrNotFound
		}
		return types.PendingAction{}, err
	}
	return pa, nil
}

// UpdatePendingStatus transitions a pending action to a terminal status.
func (s *Store) UpdatePendingStatus(ctx context.Context, actionID string, status types.PendingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = ? WHERE action_id = ?`, string(status), actionID)
	if err != nil {
		return fmt.Errorf("store: update pending status: %w", err)
	}
	return nil
}

// UpsertJob creates or replaces a scheduled job row.
func (s *Store) UpsertJob(ctx context.Context, job types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("store: marshal job spec: %w", err)
	}
	var nextRun any
	if job.NextRunAt != nil {
		nextRun = timeStr(*job.NextRunAt)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (job_id, chat_id, spec, next_run_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.JobID, job.ChatID, string(specJSON), nextRun, timeStr(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: upsert job: %w", err)
	}
	return nil
}

// UpdateJobSpecNextRun refreshes a job's spec and next-run time, used
// after each cron fire.
func (s *Store) UpdateJobSpecNextRun(ctx context.Context, jobID string, spec types.JobSpec, nextRunAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("store: marshal job spec: %w", err)
	}
	var nextRun any
	if nextRunAt != nil {
		nextRun = timeStr(*nextRunAt)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE jobs SET spec = ?, next_run_at = ? WHERE job_id = ?`, string(specJSON), nextRun, jobID)
	if err != nil {
		return fmt.Errorf("store: update job spec/next_run: %w", err)
	}
	return nil
}

func scanJob(row interface{ Scan(dest ...any) error }) (types.Job, error) {
	var j types.Job
	var specJSON, createdAt string
	var nextRun sql.NullString
	if err := row.Scan(&j.JobID, &j.ChatID, &specJSON, &nextRun, &createdAt); err != nil {
		return types.Job{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &j.Spec); err != nil {
		return types.Job{}, fmt.Errorf("store: unmarshal job spec: %w", err)
	}
	var err error
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Job{}, fmt.Errorf("store: parse job created_at: %w", err)
	}
	if nextRun.Valid {
		t, err := parseTime(nextRun.String)
		if err != nil {
			return types.Job{}, fmt.Errorf("store: parse job next_run_at: %w", err)
		}
		j.NextRunAt = &t
	}
	return j, nil
}

// ListJobs returns all jobs, or the jobs for one chat when chatID is
// non-empty.
func (s *Store) ListJobs(ctx context.Context, chatID string) ([]types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	var err error
	if chatID != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT job_id, chat_id, spec, next_run_at, created_at FROM jobs WHERE chat_id = ? ORDER BY created_at`, chatID)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT job_id, chat_id, spec, next_run_at, created_at FROM jobs ORDER BY created_at`)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var out []types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GetJob returns a single job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, chat_id, spec, next_run_at, created_at FROM jobs WHERE job_id = ?`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Job{}, ErrNotFound
		}
		return types.Job{}, err
	}
	return j, nil
}

// DeleteJob removes a job row, e.g. on cancel or after a one-shot fire.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("store: delete job: %w", err)
	}
	return nil
}

// InsertAudit appends an audit event. Never fails the caller's overall
// operation silently: a write error here is still returned, since audit
// is part of the durability contract.
func (s *Store) InsertAudit(ctx context.Context, traceID, event string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (trace_id, event, payload, created_at) VALUES (?, ?, ?, ?)`,
		traceID, event, string(payloadJSON), timeStr(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("store: insert audit: %w", err)
	}
	return nil
}
