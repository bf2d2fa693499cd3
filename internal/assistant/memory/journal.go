package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendJournalEvent appends a timestamped line to today's daily
// journal file (YYYY-MM-DD.md under the memories directory), creating
// the file with a heading on first write. Returns the path written.
func (s *Store) AppendJournalEvent(line string) (string, error) {
	now := s.now()
	day := now.UTC().Format("2006-01-02")
	path := filepath.Join(s.dir, day+".md")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(fmt.Sprintf("# Journal %s\n\n", day)), 0o644); err != nil {
			return "", fmt.Errorf("memory: create journal %s: %w", path, err)
		}
	} else if err != nil {
		return "", fmt.Errorf("memory: stat journal %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("memory: open journal %s: %w", path, err)
	}
	defer f.Close()

	entry := fmt.Sprintf("- %s %s\n", now.UTC().Format(time.RFC3339), line)
	if _, err := f.WriteString(entry); err != nil {
		return "", fmt.Errorf("memory: append journal %s: %w", path, err)
	}
	return path, nil
}
