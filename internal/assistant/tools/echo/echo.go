// Package echo provides a trivial, always-low-risk tool used to
// exercise the tool registry and the ReAct loop end to end.
package echo

import (
	"context"
	"fmt"

	"github.com/liamdatt/nexus/internal/assistant/tool"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// Tool echoes its message argument back as the tool result.
type Tool struct{}

// New returns an echo tool.
func New() Tool { return Tool{} }

func (Tool) Name() string { return "echo" }

func (Tool) Spec() tool.Spec {
	return tool.Spec{
		Name:        "echo",
		Description: "Echoes the given message back, for testing the tool-call path.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []any{"message"},
		},
	}
}

func (Tool) Run(_ context.Context, args map[string]any) (tool.Result, error) {
	message, _ := args["message"].(string)
	return tool.Result{
		OK:        true,
		Content:   fmt.Sprintf("echo: %s", message),
		RiskLevel: types.RiskLow,
	}, nil
}
