package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liamdatt/nexus/internal/assistant/contextbuilder"
	"github.com/liamdatt/nexus/internal/assistant/decision"
	"github.com/liamdatt/nexus/internal/assistant/redact"
	"github.com/liamdatt/nexus/internal/assistant/router"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// complexTaskTokens flags a user message as warranting the complex
// model, independent of the model's own judgment.
var complexTaskTokens = []string{"research", "analyze", "complex", "compare", "plan"}

func hasComplexTaskHint(text string) bool {
	lowered := strings.ToLower(text)
	for _, token := range complexTaskTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func toRouterMessages(messages []contextbuilder.Message) []router.Message {
	out := make([]router.Message, len(messages))
	for i, m := range messages {
		out[i] = router.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func formatObservation(content string, ok bool, maxChars int) string {
	content = strings.TrimSpace(redact.Mask(content))
	if content == "" {
		content = "(no textual output)"
	}
	if maxChars < 200 {
		maxChars = 200
	}
	if len(content) > maxChars {
		content = content[:maxChars] + "...(truncated)"
	}
	status := "error"
	if ok {
		status = "ok"
	}
	return fmt.Sprintf("status=%s\ncontent=%s", status, content)
}

// runReactLoop runs the bounded build-call-parse-dispatch iteration
// described in the component design, terminating on a model response,
// a confirmation request, or exhausting agentMaxSteps.
func (o *Orchestrator) runReactLoop(ctx context.Context, msg types.InboundMessage, traceID string) error {
	userText := msg.Text
	complexHint := hasComplexTaskHint(userText)
	var stepMessages []contextbuilder.Message

	for step := 1; step <= o.cfg.AgentMaxSteps; step++ {
		messages, err := o.builder.BuildMessages(msg.ChatID, userText, stepMessages)
		if err != nil {
			return fmt.Errorf("build messages: %w", err)
		}

		raw, ok, err := o.router.CompleteJSON(ctx, toRouterMessages(messages), complexHint)
		if !ok {
			errMsg := "model routing failed"
			if err != nil {
				errMsg = fmt.Sprintf("model routing failed: %s", err)
			}
			o.audit(ctx, traceID, "loop.step", map[string]any{"step": step, "ok": false, "error": errMsg})
			stepMessages = appendCorrection(stepMessages, "", errMsg)
			continue
		}

		d, parseErr := decision.Parse(raw)
		if parseErr != nil {
			o.audit(ctx, traceID, "loop.step", map[string]any{"step": step, "ok": false, "error": parseErr.Error()})
			stepMessages = appendCorrection(stepMessages, raw, parseErr.Error())
			continue
		}

		if d.Response != nil {
			o.audit(ctx, traceID, "loop.step", map[string]any{"step": step, "ok": true, "action": "response"})
			if err := o.sendText(ctx, msg, redact.Mask(*d.Response)); err != nil {
				return err
			}
			o.journal(fmt.Sprintf("response chat_id=%s", msg.ChatID))
			return nil
		}

		call := d.Call
		o.audit(ctx, traceID, "loop.step", map[string]any{"step": step, "ok": true, "action": "call", "tool": call.Name})

		result, err := o.invokeTool(ctx, msg.ChatID, call.Name, call.Arguments, false)
		if err != nil {
			return fmt.Errorf("invoke tool %s: %w", call.Name, err)
		}

		if result.RequiresConfirmation {
			return o.requestConfirmation(ctx, msg, call.Name, result.RiskLevel, call.Arguments)
		}

		o.audit(ctx, traceID, "tool.execute", map[string]any{"tool": call.Name, "ok": result.OK})
		if err := o.emitArtifacts(ctx, msg, result); err != nil {
			o.logger.Warn("orchestrator: failed to emit interim artifacts", "error", err)
		}
		observation := formatObservation(result.Content, result.OK, o.cfg.ObservationMaxChars)
		o.audit(ctx, traceID, "loop.tool_observation", map[string]any{"step": step, "tool": call.Name, "ok": result.OK})
		o.journal(fmt.Sprintf("tool=%s ok=%t chat_id=%s", call.Name, result.OK, msg.ChatID))

		assistantTurn, err := json.Marshal(map[string]any{
			"thought": d.Thought,
			"call":    map[string]any{"name": call.Name, "arguments": call.Arguments},
		})
		if err != nil {
			return fmt.Errorf("marshal assistant turn: %w", err)
		}
		stepMessages = append(stepMessages,
			contextbuilder.Message{Role: "assistant", Content: string(assistantTurn)},
			contextbuilder.Message{Role: "user", Content: "TOOL_OBSERVATION:\n" + observation},
		)
	}

	o.audit(ctx, traceID, "loop.max_steps_reached", map[string]any{"max_steps": o.cfg.AgentMaxSteps})
	return o.sendText(ctx, msg, "I reached the maximum reasoning steps for this request. Please narrow the task or ask me to continue from a specific point.")
}

// appendCorrection appends the raw assistant output (clipped to 2kB,
// when present) and a user correction instructing the model to return
// valid decision JSON, continuing the loop after a router or parse
// failure.
func appendCorrection(stepMessages []contextbuilder.Message, raw, errDetail string) []contextbuilder.Message {
	snippet := strings.TrimSpace(raw)
	if snippet != "" {
		if len(snippet) > 2000 {
			snippet = snippet[:2000]
		}
		stepMessages = append(stepMessages, contextbuilder.Message{Role: "assistant", Content: snippet})
	}
	correction := fmt.Sprintf(
		"Invalid decision output. Return a JSON object with required fields: thought + exactly one of call/response. Validation error: %s",
		errDetail,
	)
	return append(stepMessages, contextbuilder.Message{Role: "user", Content: correction})
}
