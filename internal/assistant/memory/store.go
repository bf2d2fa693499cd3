// Package memory owns the assistant's three memory surfaces: a
// bounded per-chat session window held in process memory, a long-term
// notes file (MEMORY.md) appended to across restarts, and daily
// journal files written one per UTC day.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// DefaultSessionWindow is the default number of turns retained per chat.
const DefaultSessionWindow = 20

const memoryFileName = "MEMORY.md"

// Turn is one message in a session's rolling window.
type Turn struct {
	Role    types.MessageRole
	Content string
}

// DailyNote is one day's journal file, identified by its date stem.
type DailyNote struct {
	Date string
	Text string
}

// Store holds the session window in memory and the long-term/journal
// files on disk under dir.
type Store struct {
	mu            sync.Mutex
	dir           string
	sessionWindow int
	session       map[string][]Turn
	now           func() time.Time
}

// NewStore creates dir if needed, seeds MEMORY.md with a heading on
// first use, and returns a ready Store.
func NewStore(dir string, sessionWindow int) (*Store, error) {
	if sessionWindow <= 0 {
		sessionWindow = DefaultSessionWindow
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create dir %s: %w", dir, err)
	}

	s := &Store{
		dir:           dir,
		sessionWindow: sessionWindow,
		session:       make(map[string][]Turn),
		now:           time.Now,
	}

	path := filepath.Join(dir, memoryFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("# Long-term Memory\n\n"), 0o644); err != nil {
			return nil, fmt.Errorf("memory: seed %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("memory: stat %s: %w", path, err)
	}

	return s, nil
}

// AppendTurn records a turn in chatID's rolling session window,
// evicting the oldest turn once the window is full.
func (s *Store) AppendTurn(chatID string, role types.MessageRole, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.session[chatID]
	turns = append(turns, Turn{Role: role, Content: text})
	if len(turns) > s.sessionWindow {
		turns = turns[len(turns)-s.sessionWindow:]
	}
	s.session[chatID] = turns
}

// SessionHistory returns a copy of chatID's current session window,
// oldest first.
func (s *Store) SessionHistory(chatID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.session[chatID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// AppendLongTermNote appends a bullet line to MEMORY.md.
func (s *Store) AppendLongTermNote(note string) error {
	path := filepath.Join(s.dir, memoryFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("memory: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "- %s\n", note); err != nil {
		return fmt.Errorf("memory: append %s: %w", path, err)
	}
	return nil
}

// RawMemory returns the full contents of MEMORY.md.
func (s *Store) RawMemory() (string, error) {
	path := filepath.Join(s.dir, memoryFileName)
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("memory: read %s: %w", path, err)
	}
	return string(buf), nil
}

// RelevantMemory returns up to limit MEMORY.md sections scored against
// query by term frequency, falling back to document order when nothing
// scores above zero.
func (s *Store) RelevantMemory(query string, limit int) ([]string, error) {
	raw, err := s.RawMemory()
	if err != nil {
		return nil, err
	}
	return selectRelevantSections(raw, query, limit), nil
}

// RecentDailyNotes returns up to days most recent daily journal files,
// newest first.
func (s *Store) RecentDailyNotes(days int) ([]DailyNote, error) {
	paths, err := listRecentDailyNotePaths(s.dir, days)
	if err != nil {
		return nil, fmt.Errorf("memory: list daily notes: %w", err)
	}

	notes := make([]DailyNote, 0, len(paths))
	for _, path := range paths {
		buf, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		stem := filepath.Base(path)
		stem = stem[:len(stem)-len(filepath.Ext(stem))]
		notes = append(notes, DailyNote{Date: stem, Text: string(buf)})
	}
	return notes, nil
}
