// Package decision parses and validates the LLM's structured JSON output:
// a {thought, call|response} object where exactly one of call or response
// must be present.
package decision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid wraps every decision parse/validation failure so callers can
// test for it with errors.Is without string-matching the message.
var ErrInvalid = errors.New("invalid decision")

// Call is a tool invocation proposed by the LLM.
type Call struct {
	Name      string
	Arguments map[string]any
}

// Decision is the tagged variant produced by one LLM step: either a Call
// or a Response is populated, never both, never neither.
type Decision struct {
	Thought  string
	Call     *Call
	Response *string
}

type wireCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireDecision struct {
	Thought  string    `json:"thought"`
	Call     *wireCall `json:"call"`
	Response *string   `json:"response"`
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// invalidAt reports a field-level validation failure as
// "invalid decision at <loc>: <msg>".
func invalidAt(loc, msg string) error {
	return fmt.Errorf("%w at %s: %s", ErrInvalid, loc, msg)
}

// extractJSONCandidate implements the permissive-parse fallback: try the
// whole trimmed string as JSON first; if that fails, decode a JSON value
// starting at the first '{' or '[' found in the string and ignore any
// trailing bytes.
func extractJSONCandidate(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	var direct any
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct, true
	}

	braceIdx := strings.IndexByte(trimmed, '{')
	bracketIdx := strings.IndexByte(trimmed, '[')
	start := -1
	switch {
	case braceIdx < 0:
		start = bracketIdx
	case bracketIdx < 0:
		start = braceIdx
	case braceIdx < bracketIdx:
		start = braceIdx
	default:
		start = bracketIdx
	}
	if start < 0 {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed[start:])))
	var candidate any
	if err := dec.Decode(&candidate); err != nil {
		return nil, false
	}
	return candidate, true
}

func coercePayload(payload any) (map[string]any, error) {
	if s, ok := payload.(string); ok {
		parsed, ok := extractJSONCandidate(s)
		if !ok {
			return nil, invalid("decision must be valid JSON object")
		}
		payload = parsed
	}

	if arr, ok := payload.([]any); ok {
		if len(arr) == 0 {
			return nil, invalid("decision array is empty")
		}
		payload = arr[0]
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, invalid("decision must be a JSON object")
	}
	return obj, nil
}

// Parse accepts raw model output (normally a JSON string, sometimes
// wrapped or preceded by chatter) and returns a validated Decision.
func Parse(raw string) (Decision, error) {
	obj, err := coercePayload(raw)
	if err != nil {
		return Decision{}, err
	}

	buf, err := json.Marshal(obj)
	if err != nil {
		return Decision{}, invalid("decision must be a JSON object")
	}

	var wire wireDecision
	if err := json.Unmarshal(buf, &wire); err != nil {
		return Decision{}, invalid(err.Error())
	}

	return validate(wire)
}

func validate(w wireDecision) (Decision, error) {
	thought := strings.TrimSpace(w.Thought)
	if thought == "" {
		return Decision{}, invalidAt("thought", "thought must not be empty")
	}

	hasCall := w.Call != nil
	hasResponse := w.Response != nil
	if hasCall == hasResponse {
		return Decision{}, invalid("exactly one of call or response is required")
	}

	d := Decision{Thought: thought}

	if hasCall {
		name := strings.TrimSpace(w.Call.Name)
		if name == "" {
			return Decision{}, invalidAt("call.name", "call.name must not be empty")
		}
		args := w.Call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		d.Call = &Call{Name: name, Arguments: args}
		return d, nil
	}

	response := strings.TrimSpace(*w.Response)
	if response == "" {
		return Decision{}, invalidAt("response", "response must not be empty")
	}
	d.Response = &response
	return d, nil
}
