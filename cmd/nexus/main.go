// Command nexus is the single-operator assistant core: it wires the
// durable store, memory, policy engine, tool registry, context
// builder, model router, and scheduler together, then feeds inbound
// messages to the orchestrator: the WhatsApp bridge calls HandleInbound
// from its own receive loop, and console lines pass through the
// dispatch loop below.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/liamdatt/nexus/internal/assistant/bridge"
	"github.com/liamdatt/nexus/internal/assistant/channel"
	"github.com/liamdatt/nexus/internal/assistant/config"
	"github.com/liamdatt/nexus/internal/assistant/contextbuilder"
	"github.com/liamdatt/nexus/internal/assistant/memory"
	"github.com/liamdatt/nexus/internal/assistant/orchestrator"
	"github.com/liamdatt/nexus/internal/assistant/policy"
	"github.com/liamdatt/nexus/internal/assistant/router"
	"github.com/liamdatt/nexus/internal/assistant/scheduler"
	"github.com/liamdatt/nexus/internal/assistant/store"
	"github.com/liamdatt/nexus/internal/assistant/tool"
	"github.com/liamdatt/nexus/internal/assistant/tools/echo"
	"github.com/liamdatt/nexus/internal/assistant/tools/reminder"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("nexus: fatal error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.MemoriesDir, cfg.Paths.PromptsDir, cfg.Paths.SkillsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := ensureDefaultSystemPrompt(cfg.Paths.PromptsDir); err != nil {
		return fmt.Errorf("seed default prompts: %w", err)
	}

	s, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	mem, err := memory.NewStore(cfg.Paths.MemoriesDir, cfg.Session.WindowTurns)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}

	pol := policy.New(s)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var orc *orchestrator.Orchestrator

	sched := scheduler.New(s, cfg.Timezone, func(fireCtx context.Context, chatID, text string) {
		orc.EmitScheduled(fireCtx, chatID, text)
	}, scheduler.WithLogger(logger))

	loaded, failed, err := sched.RestoreJobs(ctx)
	if err != nil {
		return fmt.Errorf("restore scheduled jobs: %w", err)
	}
	logger.Info("nexus: restored scheduled jobs", "loaded", loaded, "failed", failed)

	registry := tool.NewRegistry()
	if err := registry.Register(echo.New()); err != nil {
		return fmt.Errorf("register echo tool: %w", err)
	}
	if err := registry.Register(reminder.New(sched)); err != nil {
		return fmt.Errorf("register reminder tool: %w", err)
	}

	builder := contextbuilder.New(contextbuilder.Config{
		PromptsDir:          cfg.Paths.PromptsDir,
		SkillsDir:           cfg.Paths.SkillsDir,
		MaxMemorySections:   cfg.Session.MaxMemorySections,
		MemoryRecentDays:    cfg.Session.MemoryRecentDays,
		ObservationMaxChars: 4000,
	}, mem, registry)

	rt := router.New(router.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		PrimaryModel:  cfg.LLM.PrimaryModel,
		ComplexModel:  cfg.LLM.ComplexModel,
		FallbackModel: cfg.LLM.FallbackModel,
		Timeout:       cfg.LLM.Timeout,
		MaxTokens:     cfg.LLM.MaxTokens,
	}, logger)

	senders := map[types.Channel]orchestrator.Sender{}
	var channels []channel.Channel

	var bridgeClient *bridge.Client
	if cfg.Bridge.WSURL != "" {
		bridgeClient = bridge.New(cfg.Bridge.WSURL, cfg.Bridge.SharedSecret,
			func(inboundCtx context.Context, msg types.InboundMessage, traceID string) {
				orc.HandleInbound(inboundCtx, msg, traceID)
			},
			func(providerMessageID, chatID string) {
				orc.RecordDelivery(ctx, providerMessageID, chatID)
			},
			bridge.WithLogger(logger),
		)
		senders[types.ChannelWhatsApp] = bridgeClient
	}

	var console *channel.Console
	if cfg.CLI.Enabled {
		console = channel.NewConsole(os.Stdin, os.Stdout)
		senders[types.ChannelConsole] = console
		channels = append(channels, console)
	}

	orc = orchestrator.New(orchestrator.Config{
		AgentMaxSteps:       cfg.Agent.MaxSteps,
		ObservationMaxChars: 4000,
		DataDir:             filepath.Dir(cfg.Paths.DBPath),
	}, s, mem, pol, registry, builder, rt, senders, orchestrator.WithLogger(logger))

	sched.Run(ctx)

	if bridgeClient != nil {
		go bridgeClient.RunForever(ctx)
	}
	if console != nil {
		go console.Run(ctx)
	}

	logger.Info("nexus: running", "bridge_enabled", bridgeClient != nil, "cli_enabled", console != nil)

	inbound := channel.Aggregate(ctx, channels...)
dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case env, ok := <-inbound:
			if !ok {
				break dispatch
			}
			orc.HandleInbound(ctx, env.Message, env.TraceID)
		}
	}

	sched.Wait()
	return nil
}

const defaultSystemPrompt = `You are a personal assistant running as a single background process for one operator.
You can call tools to take action, or respond directly in plain language.
Always return your decision as JSON: {"thought": "...", "call": {"name": "...", "arguments": {...}}} or {"thought": "...", "response": "..."}.
`

func ensureDefaultSystemPrompt(promptsDir string) error {
	path := filepath.Join(promptsDir, "system.md")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(defaultSystemPrompt), 0o644)
}
