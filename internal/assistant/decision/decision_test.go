package decision

import (
	"errors"
	"testing"
)

func TestParse_Response(t *testing.T) {
	d, err := Parse(`{"thought":"just answer","response":"hello there"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Call != nil {
		t.Fatalf("expected no call, got %+v", d.Call)
	}
	if d.Response == nil || *d.Response != "hello there" {
		t.Fatalf("unexpected response: %+v", d.Response)
	}
}

func TestParse_Call(t *testing.T) {
	d, err := Parse(`{"thought":"need a tool","call":{"name":"echo","arguments":{"text":"hi"}}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Call == nil || d.Call.Name != "echo" {
		t.Fatalf("unexpected call: %+v", d.Call)
	}
	if d.Call.Arguments["text"] != "hi" {
		t.Fatalf("unexpected arguments: %+v", d.Call.Arguments)
	}
}

func TestParse_CallDefaultsEmptyArguments(t *testing.T) {
	d, err := Parse(`{"thought":"t","call":{"name":"noop"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Call.Arguments == nil {
		t.Fatalf("expected non-nil default arguments map")
	}
}

func TestParse_ExclusivityViolations(t *testing.T) {
	tests := []string{
		`{"thought":"t"}`,
		`{"thought":"t","call":{"name":"echo"},"response":"hi"}`,
	}
	for _, raw := range tests {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) expected ErrInvalid, got %v", raw, err)
		}
	}
}

func TestParse_EmptyThought(t *testing.T) {
	_, err := Parse(`{"thought":"  ","response":"hi"}`)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParse_PrefixJunkBeforeJSON(t *testing.T) {
	raw := "Sure, here's my decision: {\"thought\":\"ok\",\"response\":\"done\"} thanks"
	d, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Response == nil || *d.Response != "done" {
		t.Fatalf("unexpected response: %+v", d.Response)
	}
}

func TestParse_NotJSON(t *testing.T) {
	if _, err := Parse("not json at all"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParse_EmptyArray(t *testing.T) {
	if _, err := Parse("[]"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParse_ArrayTakesFirstElement(t *testing.T) {
	d, err := Parse(`[{"thought":"t","response":"first"},{"thought":"t2","response":"second"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Response == nil || *d.Response != "first" {
		t.Fatalf("expected first element, got %+v", d.Response)
	}
}
