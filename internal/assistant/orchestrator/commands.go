package orchestrator

import (
	"encoding/json"
	"strings"
)

// directCommand is a tool call short-circuited past the LLM entirely.
type directCommand struct {
	Tool string
	Args map[string]any
}

// errDirectCommand carries a user-facing usage message for a malformed
// direct command; the caller replies with it instead of treating it as
// a fault.
type errDirectCommand struct{ msg string }

func (e errDirectCommand) Error() string { return e.msg }

// parseDirectCommand recognizes /tool, /schedule, and /jobs and turns
// them into a tool call, bypassing the ReAct loop entirely. Returns
// (nil, nil) when text is not a direct command.
func parseDirectCommand(text string) (*directCommand, error) {
	trimmed := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(trimmed, "/tool "):
		parts := strings.SplitN(trimmed, " ", 3)
		if len(parts) < 3 {
			return nil, errDirectCommand{"Use /tool <name> <json>."}
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(parts[2]), &args); err != nil {
			return nil, errDirectCommand{"Invalid JSON. Use /tool <name> <json>."}
		}
		return &directCommand{Tool: parts[1], Args: args}, nil

	case strings.HasPrefix(trimmed, "/schedule "):
		payload := strings.TrimSpace(strings.TrimPrefix(trimmed, "/schedule "))
		idx := strings.IndexByte(payload, '|')
		if idx < 0 {
			return nil, errDirectCommand{"Use /schedule <when> | <text>. Example: /schedule every monday at 9am | Weekly check-in"}
		}
		when := strings.TrimSpace(payload[:idx])
		reminderText := strings.TrimSpace(payload[idx+1:])
		return &directCommand{
			Tool: "scheduler",
			Args: map[string]any{"action": "schedule", "when": when, "text": reminderText},
		}, nil

	case trimmed == "/jobs" || strings.HasPrefix(trimmed, "/jobs "):
		return &directCommand{Tool: "scheduler", Args: map[string]any{"action": "list"}}, nil

	default:
		return nil, nil
	}
}
