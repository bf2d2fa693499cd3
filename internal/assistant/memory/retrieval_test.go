package memory

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitSections(t *testing.T) {
	text := "leading\ntext\n# Heading One\nbody one\n# Heading Two\nbody two\n"
	sections := splitSections(text)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}
	if sections[0] != "leading\ntext" {
		t.Errorf("unexpected leading section: %q", sections[0])
	}
}

func TestScoreSection(t *testing.T) {
	section := "# Preferences\nThe user prefers dark mode and terse replies."
	if got := scoreSection(section, "dark mode"); got != 2 {
		t.Errorf("score = %d, want 2", got)
	}
	if got := scoreSection(section, "a"); got != 0 {
		t.Errorf("short tokens should not score, got %d", got)
	}
}

func TestSelectRelevantSections(t *testing.T) {
	text := "# A\nabout cats\n# B\nabout dogs and dogs\n# C\nunrelated content\n"

	selected := selectRelevantSections(text, "dogs", 1)
	if len(selected) != 1 || selected[0] != "# B\nabout dogs and dogs" {
		t.Fatalf("unexpected selection: %+v", selected)
	}

	fallback := selectRelevantSections(text, "xyzxyz", 2)
	if len(fallback) != 2 {
		t.Fatalf("expected fallback to document order, got %+v", fallback)
	}
}

func TestListRecentDailyNotePaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2024-01-01.md", "2024-01-03.md", "2024-01-02.md", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	paths, err := listRecentDailyNotePaths(dir, 2)
	if err != nil {
		t.Fatalf("listRecentDailyNotePaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d: %+v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "2024-01-03.md" || filepath.Base(paths[1]) != "2024-01-02.md" {
		t.Fatalf("unexpected order: %+v", paths)
	}
}
