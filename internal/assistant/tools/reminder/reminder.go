// Package reminder wraps the scheduler component as a tool: schedule,
// list, cancel, and update reminders and recurring jobs.
package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamdatt/nexus/internal/assistant/scheduler"
	"github.com/liamdatt/nexus/internal/assistant/tool"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// Tool wraps a *scheduler.Scheduler as a low-risk tool.
type Tool struct {
	scheduler *scheduler.Scheduler
}

// New builds a reminder tool over sched.
func New(sched *scheduler.Scheduler) Tool {
	return Tool{scheduler: sched}
}

func (Tool) Name() string { return "scheduler" }

func (Tool) Spec() tool.Spec {
	return tool.Spec{
		Name:        "scheduler",
		Description: "Schedule reminders and recurring jobs with list/cancel/update support.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action":  map[string]any{"type": "string", "enum": []any{"schedule", "list", "cancel", "update"}},
				"chat_id": map[string]any{"type": "string"},
				"job_id":  map[string]any{"type": "string"},
				"text":    map[string]any{"type": "string"},
				"when":    map[string]any{"type": "string"},
			},
			"required": []any{"action"},
		},
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func (t Tool) Run(ctx context.Context, args map[string]any) (tool.Result, error) {
	action := stringArg(args, "action")
	chatID := stringArg(args, "chat_id")

	switch action {
	case "list":
		if chatID == "" {
			return tool.Result{OK: false, Content: "chat_id is required", RiskLevel: types.RiskLow}, nil
		}
		jobs, err := t.scheduler.List(ctx, chatID)
		if err != nil {
			return tool.Result{}, err
		}
		if len(jobs) == 0 {
			return tool.Result{OK: true, Content: "No scheduled jobs", RiskLevel: types.RiskLow}, nil
		}
		var lines []string
		for _, job := range jobs {
			next := "none"
			if job.NextRunAt != nil {
				next = job.NextRunAt.Format("2006-01-02T15:04:05Z07:00")
			}
			lines = append(lines, fmt.Sprintf("- %s next=%s when=%q text=%q", job.JobID, next, job.Spec.When, job.Spec.Text))
		}
		return tool.Result{OK: true, Content: strings.Join(lines, "\n"), RiskLevel: types.RiskLow}, nil

	case "schedule":
		if chatID == "" {
			return tool.Result{OK: false, Content: "chat_id is required", RiskLevel: types.RiskLow}, nil
		}
		when := stringArg(args, "when")
		if when == "" {
			return tool.Result{OK: false, Content: "when is required", RiskLevel: types.RiskLow}, nil
		}
		text := stringArg(args, "text")
		if text == "" {
			text = "Reminder"
		}
		job, summary, err := t.scheduler.Schedule(ctx, chatID, when, text)
		if err != nil {
			return tool.Result{OK: false, Content: fmt.Sprintf("failed to parse schedule: %s", err), RiskLevel: types.RiskLow}, nil
		}
		return tool.Result{OK: true, Content: fmt.Sprintf("Scheduled job %s (%s)", job.JobID, summary), RiskLevel: types.RiskLow}, nil

	case "cancel":
		jobID := stringArg(args, "job_id")
		if jobID == "" {
			return tool.Result{OK: false, Content: "job_id is required", RiskLevel: types.RiskLow}, nil
		}
		if existing, err := t.scheduler.Get(jobID); err == nil && chatID != "" && existing.ChatID != chatID {
			return tool.Result{OK: false, Content: "job_id not found for this chat", RiskLevel: types.RiskLow}, nil
		}
		if err := t.scheduler.Cancel(ctx, jobID); err != nil {
			return tool.Result{}, err
		}
		return tool.Result{OK: true, Content: fmt.Sprintf("Cancelled job %s", jobID), RiskLevel: types.RiskLow}, nil

	case "update":
		jobID := stringArg(args, "job_id")
		if jobID == "" {
			return tool.Result{OK: false, Content: "job_id is required", RiskLevel: types.RiskLow}, nil
		}
		existing, err := t.scheduler.Get(jobID)
		if err != nil {
			return tool.Result{OK: false, Content: fmt.Sprintf("Job not found: %s", jobID), RiskLevel: types.RiskLow}, nil
		}
		if chatID != "" && existing.ChatID != chatID {
			return tool.Result{OK: false, Content: "job_id not found for this chat", RiskLevel: types.RiskLow}, nil
		}

		when := stringArg(args, "when")
		if when == "" {
			when = existing.Spec.When
		}
		text := stringArg(args, "text")
		if text == "" {
			text = existing.Spec.Text
		}
		if when == "" {
			return tool.Result{OK: false, Content: "when is required", RiskLevel: types.RiskLow}, nil
		}

		job, summary, err := t.scheduler.Update(ctx, jobID, when, text)
		if err != nil {
			return tool.Result{OK: false, Content: fmt.Sprintf("failed to parse schedule: %s", err), RiskLevel: types.RiskLow}, nil
		}
		return tool.Result{OK: true, Content: fmt.Sprintf("Updated job %s (%s)", job.JobID, summary), RiskLevel: types.RiskLow}, nil

	default:
		return tool.Result{OK: false, Content: fmt.Sprintf("Unsupported action: %s", action), RiskLevel: types.RiskLow}, nil
	}
}
