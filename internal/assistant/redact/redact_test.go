package redact

import (
	"strings"
	"testing"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"phone number", "call me at +15551234567 ok", "call me at [REDACTED] ok"},
		{"openai key prefix", "key is sk-abcdef1234567890xyz", "key is [REDACTED]"},
		{"env leak", "export OPENAI_API_KEY=abcdefgh12345678", "export [REDACTED]"},
		{"google oauth access token", "token ya29.a0Af-abc123_ok", "token [REDACTED]"},
		{"clean text", "hello there, no secrets here", "hello there, no secrets here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.in); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMask_NoRawMatchSurvives(t *testing.T) {
	secrets := []string{
		"+15551234567",
		"sk-abcdef1234567890xyz",
		"OPENAI_API_KEY=abcdefgh12345678",
		"ya29.a0Af-abc123_ok",
		"1//0gAbc123-def_ghi",
	}
	for _, s := range secrets {
		masked := Mask("prefix " + s + " suffix")
		if strings.Contains(masked, s) {
			t.Errorf("raw secret %q survived masking: %q", s, masked)
		}
	}
}
