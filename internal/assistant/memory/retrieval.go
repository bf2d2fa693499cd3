package memory

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var dailyNoteRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.md$`)

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// splitSections breaks long-term memory text into blocks, each starting
// at a Markdown heading line. Text before the first heading is its own
// leading section.
func splitSections(text string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "#") && len(current) > 0 {
			if section := strings.TrimSpace(strings.Join(current, "\n")); section != "" {
				sections = append(sections, section)
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if section := strings.TrimSpace(strings.Join(current, "\n")); section != "" {
		sections = append(sections, section)
	}
	return sections
}

// scoreSection counts query-token occurrences (case-insensitive, tokens
// longer than 2 characters) within a section.
func scoreSection(section, query string) int {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(section)
	score := 0
	for _, tok := range tokens {
		score += strings.Count(lower, tok)
	}
	return score
}

func queryTokens(query string) []string {
	matches := tokenRe.FindAllString(strings.ToLower(query), -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 2 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// selectRelevantSections ranks sections by score against query and
// returns the top limit. When every section scores zero, it falls back
// to the first limit sections in document order rather than returning
// nothing.
func selectRelevantSections(memoryText, query string, limit int) []string {
	sections := splitSections(memoryText)

	type scored struct {
		score   int
		section string
		order   int
	}
	ranked := make([]scored, len(sections))
	for i, s := range sections {
		ranked[i] = scored{score: scoreSection(s, query), section: s, order: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	var selected []string
	for _, r := range ranked {
		if r.score > 0 {
			selected = append(selected, r.section)
		}
	}
	if len(selected) > 0 {
		if len(selected) > limit {
			selected = selected[:limit]
		}
		return selected
	}

	if len(sections) > limit {
		return sections[:limit]
	}
	return sections
}

// listRecentDailyNotePaths returns up to days most recent daily note
// file paths in dir, newest first. File names are YYYY-MM-DD.md so a
// reverse lexical sort is a reverse date sort.
func listRecentDailyNotePaths(dir string, days int) ([]string, error) {
	if days <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if dailyNoteRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if len(names) > days {
		names = names[:days]
	}

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}
