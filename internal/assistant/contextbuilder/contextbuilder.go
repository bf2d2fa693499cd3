// Package contextbuilder composes the fixed-order prompt sent to the
// LLM: required/optional prompt files, tool specs, skills, long-term
// memory, recent daily notes, and the chat's session history.
package contextbuilder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/liamdatt/nexus/internal/assistant/memory"
	"github.com/liamdatt/nexus/internal/assistant/tool"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// optionalPromptFiles are appended, in order, after the required
// system.md, when present.
var optionalPromptFiles = []string{"SOUL.md", "IDENTITY.md", "AGENTS.md"}

// ErrMissingSystemPrompt is returned when the required system.md is absent.
type ErrMissingSystemPrompt struct{ Path string }

func (e ErrMissingSystemPrompt) Error() string {
	return fmt.Sprintf("contextbuilder: required prompt file missing: %s", e.Path)
}

// Config bounds the context builder's behavior.
type Config struct {
	PromptsDir          string
	SkillsDir           string
	MaxMemorySections   int
	MemoryRecentDays    int
	ObservationMaxChars int
}

// Builder composes prompt messages from prompt files, tool specs,
// skills, and memory.
type Builder struct {
	cfg   Config
	mem   *memory.Store
	tools *tool.Registry
}

// New builds a Builder over the given memory store and tool registry.
func New(cfg Config, mem *memory.Store, tools *tool.Registry) *Builder {
	return &Builder{cfg: cfg, mem: mem, tools: tools}
}

// Message is a single chat-completion message.
type Message struct {
	Role    string
	Content string
}

func (b *Builder) readPromptFile(name string, required bool) (string, error) {
	path := filepath.Join(b.cfg.PromptsDir, name)
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if required {
			return "", ErrMissingSystemPrompt{Path: path}
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("contextbuilder: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(buf)), nil
}

func clip(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "...(truncated)"
}

type skillDocument struct {
	name    string
	content string
}

func loadSkillDocuments(dir string) ([]skillDocument, error) {
	if dir == "" {
		return nil, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.Name() == "SKILL.md" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("contextbuilder: walk skills dir: %w", err)
	}
	sort.Strings(paths)

	docs := make([]skillDocument, 0, len(paths))
	for _, path := range paths {
		buf, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		docs = append(docs, skillDocument{
			name:    filepath.Base(filepath.Dir(path)),
			content: strings.TrimSpace(string(buf)),
		})
	}
	return docs, nil
}

// buildSystemPrompt assembles the system message's content: prompt
// files, tool specs, skills, long-term memory, and recent daily notes,
// in that fixed order. Blank sections are dropped.
func (b *Builder) buildSystemPrompt(query string) (string, error) {
	var sections []string

	systemText, err := b.readPromptFile("system.md", true)
	if err != nil {
		return "", err
	}
	sections = append(sections, systemText)

	for _, name := range optionalPromptFiles {
		text, err := b.readPromptFile(name, false)
		if err != nil {
			return "", err
		}
		if text != "" {
			sections = append(sections, text)
		}
	}

	if b.tools != nil {
		specs := b.tools.Specs()
		sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
		toolsJSON, err := json.MarshalIndent(specs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("contextbuilder: marshal tool specs: %w", err)
		}
		sections = append(sections, fmt.Sprintf("## Tools\nAvailable tool specs (JSON schema):\n%s", toolsJSON))
	}

	skills, err := loadSkillDocuments(b.cfg.SkillsDir)
	if err != nil {
		return "", err
	}
	if len(skills) > 0 {
		lines := []string{"## Skills"}
		for _, s := range skills {
			lines = append(lines, fmt.Sprintf("### %s\n%s", s.name, s.content))
		}
		sections = append(sections, strings.Join(lines, "\n\n"))
	}

	if b.mem != nil {
		longTerm, err := b.mem.RelevantMemory(query, b.cfg.MaxMemorySections)
		if err != nil {
			return "", fmt.Errorf("contextbuilder: relevant memory: %w", err)
		}
		if len(longTerm) > 0 {
			parts := make([]string, len(longTerm))
			for i, snippet := range longTerm {
				parts[i] = fmt.Sprintf("### Memory Snippet %d\n%s", i+1, snippet)
			}
			sections = append(sections, fmt.Sprintf("## Long-Term Memory\n%s", strings.Join(parts, "\n\n")))
		}

		recentNotes, err := b.mem.RecentDailyNotes(b.cfg.MemoryRecentDays)
		if err != nil {
			return "", fmt.Errorf("contextbuilder: recent daily notes: %w", err)
		}
		if len(recentNotes) > 0 {
			perNoteLimit := b.cfg.ObservationMaxChars / 2
			if perNoteLimit < 1000 {
				perNoteLimit = 1000
			}
			parts := make([]string, len(recentNotes))
			for i, note := range recentNotes {
				parts[i] = fmt.Sprintf("### %s\n%s", note.Date, clip(note.Text, perNoteLimit))
			}
			sections = append(sections, fmt.Sprintf("## Recent Daily Notes\n%s", strings.Join(parts, "\n\n")))
		}
	}

	var nonBlank []string
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			nonBlank = append(nonBlank, s)
		}
	}
	return strings.Join(nonBlank, "\n\n"), nil
}

// BuildMessages composes the full message list for one orchestrator
// turn: system prompt, the last 12 turns of session history, the
// user's message, and any step messages accumulated so far in a ReAct
// loop.
func (b *Builder) BuildMessages(chatID, userText string, stepMessages []Message) ([]Message, error) {
	systemPrompt, err := b.buildSystemPrompt(userText)
	if err != nil {
		return nil, err
	}

	messages := []Message{{Role: "system", Content: systemPrompt}}

	if b.mem != nil {
		history := b.mem.SessionHistory(chatID)
		if len(history) > 12 {
			history = history[len(history)-12:]
		}
		for _, turn := range history {
			messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
		}
	}

	messages = append(messages, Message{Role: string(types.RoleUser), Content: userText})
	messages = append(messages, stepMessages...)
	return messages, nil
}
