// Package orchestrator implements the inbound algorithm: channel
// filtering, ledger claim, confirmation resolution, direct commands,
// and the bounded ReAct loop, wiring every other assistant component
// together.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamdatt/nexus/internal/assistant/channel"
	"github.com/liamdatt/nexus/internal/assistant/contextbuilder"
	"github.com/liamdatt/nexus/internal/assistant/memory"
	"github.com/liamdatt/nexus/internal/assistant/policy"
	"github.com/liamdatt/nexus/internal/assistant/redact"
	"github.com/liamdatt/nexus/internal/assistant/router"
	"github.com/liamdatt/nexus/internal/assistant/store"
	"github.com/liamdatt/nexus/internal/assistant/tool"
	"github.com/liamdatt/nexus/internal/assistant/types"
)

// Router is the model-routing capability the orchestrator depends on.
// The reference implementation lives in the router package; this
// interface lets the orchestrator be tested without a live LLM.
type Router interface {
	CompleteJSON(ctx context.Context, messages []router.Message, complexHint bool) (string, bool, error)
}

// Sender delivers an outbound message through one channel adapter.
type Sender interface {
	Send(ctx context.Context, msg types.OutboundMessage) error
}

// Config bounds the orchestrator's behavior.
type Config struct {
	AgentMaxSteps       int
	ObservationMaxChars int
	DataDir             string
}

// Orchestrator wires the durable store, memory, policy engine, tool
// registry, context builder, and router into the single inbound
// algorithm described by the component design.
type Orchestrator struct {
	cfg Config

	store   *store.Store
	mem     *memory.Store
	policy  *policy.Engine
	tools   *tool.Registry
	builder *contextbuilder.Builder
	router  Router

	senders map[types.Channel]Sender

	redactedLog *redactedLog
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger overrides the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an Orchestrator. senders maps each channel an outbound
// reply may target to the adapter that delivers it.
func New(cfg Config, s *store.Store, mem *memory.Store, pol *policy.Engine, tools *tool.Registry, builder *contextbuilder.Builder, rt Router, senders map[types.Channel]Sender, opts ...Option) *Orchestrator {
	if cfg.AgentMaxSteps <= 0 {
		cfg.AgentMaxSteps = 8
	}
	if cfg.ObservationMaxChars <= 0 {
		cfg.ObservationMaxChars = 4000
	}
	o := &Orchestrator{
		cfg:         cfg,
		store:       s,
		mem:         mem,
		policy:      pol,
		tools:       tools,
		builder:     builder,
		router:      rt,
		senders:     senders,
		redactedLog: newRedactedLog(cfg.DataDir),
		logger:      slog.Default().With("component", "orchestrator"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) audit(ctx context.Context, traceID, event string, payload map[string]any) {
	if err := o.store.InsertAudit(ctx, traceID, event, payload); err != nil {
		o.logger.Warn("orchestrator: failed to write audit event", "event", event, "trace_id", traceID, "error", err)
	}
}

func (o *Orchestrator) journal(text string) {
	if o.mem == nil {
		return
	}
	if _, err := o.mem.AppendJournalEvent(text); err != nil {
		o.logger.Warn("orchestrator: failed to append journal event", "error", err)
	}
}

// userPart returns the part of a WhatsApp-style identity before its
// @domain suffix, so "15551234567@lid" and "15551234567@s.whatsapp.net"
// compare equal.
func userPart(identity string) string {
	if idx := strings.IndexByte(identity, '@'); idx >= 0 {
		return identity[:idx]
	}
	return identity
}

func identityMatches(senderID, chatID string) bool {
	return userPart(senderID) == userPart(chatID)
}

func mediaContextBlock(media []types.Media) string {
	if len(media) == 0 {
		return ""
	}
	var lines []string
	lines = append(lines, "[MEDIA_CONTEXT]")
	for _, m := range media {
		parts := []string{string(m.Type)}
		if m.MimeType != "" {
			parts = append(parts, m.MimeType)
		}
		if m.FileName != "" {
			parts = append(parts, m.FileName)
		}
		line := "- " + strings.Join(parts, " ")
		if m.Caption != "" {
			line += fmt.Sprintf(" caption=%q", m.Caption)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func effectiveText(text string, media []types.Media) string {
	block := mediaContextBlock(media)
	if block == "" {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return block
	}
	return text + "\n" + block
}

// senderFor returns the Sender registered for ch, or an error if none
// is wired.
func (o *Orchestrator) senderFor(ch types.Channel) (Sender, error) {
	s, ok := o.senders[ch]
	if !ok || s == nil {
		return nil, fmt.Errorf("orchestrator: no sender registered for channel %q", ch)
	}
	return s, nil
}

// sendText builds and delivers a reply to inbound's channel/chat,
// persisting it and writing it to the redacted log as part of the same
// send path (never "sent" without actually transmitting).
func (o *Orchestrator) sendText(ctx context.Context, inbound types.InboundMessage, text string) error {
	out := types.OutboundMessage{
		ID:      uuid.NewString(),
		Channel: inbound.Channel,
		ChatID:  inbound.ChatID,
		Text:    text,
		ReplyTo: inbound.ID,
	}
	return o.send(ctx, out)
}

func (o *Orchestrator) send(ctx context.Context, out types.OutboundMessage) error {
	sender, err := o.senderFor(out.Channel)
	if err != nil {
		return err
	}
	if err := sender.Send(ctx, out); err != nil {
		return fmt.Errorf("orchestrator: send outbound: %w", err)
	}

	if _, err := o.store.ClaimLedger(ctx, out.ID, types.DirectionOutbound, out.ChatID); err != nil {
		o.logger.Warn("orchestrator: failed to record outbound ledger entry", "message_id", out.ID, "error", err)
	}

	if err := o.redactedLog.Write("outbound.message", map[string]any{
		"message_id": out.ID,
		"channel":    string(out.Channel),
		"chat_id":    out.ChatID,
		"text":       out.Text,
	}); err != nil {
		o.logger.Warn("orchestrator: failed to write redacted log", "error", err)
	}

	msg := types.Message{
		ID:        out.ID,
		Channel:   out.Channel,
		ChatID:    out.ChatID,
		SenderID:  "assistant",
		Role:      types.RoleAssistant,
		Text:      redact.Mask(out.Text),
		TraceID:   out.ReplyTo,
		CreatedAt: o.now(),
	}
	if err := o.store.InsertMessage(ctx, msg); err != nil {
		o.logger.Warn("orchestrator: failed to persist outbound message", "error", err)
	}
	o.mem.AppendTurn(out.ChatID, types.RoleAssistant, out.Text)
	return nil
}

// RecordDelivery is the bridge's onDelivery callback: it records a
// delivery receipt's provider-assigned message id in the outbound
// ledger, under the same id the bridge will later report when that
// same message round-trips back in as a self-chat echo. Without this,
// the echo would be claimed as a fresh inbound message instead of
// being recognized and dropped.
func (o *Orchestrator) RecordDelivery(ctx context.Context, providerMessageID, chatID string) {
	if providerMessageID == "" {
		return
	}
	if _, err := o.store.ClaimLedger(ctx, providerMessageID, types.DirectionOutbound, chatID); err != nil {
		o.logger.Warn("orchestrator: failed to record delivery receipt in ledger", "provider_message_id", providerMessageID, "chat_id", chatID, "error", err)
	}
}

// EmitScheduled is the scheduler's onFire callback: it constructs and
// sends a "[Reminder] <text>" outbound on chatID's channel (console
// chat id routes to console, everything else to WhatsApp).
func (o *Orchestrator) EmitScheduled(ctx context.Context, chatID, text string) {
	ch := types.ChannelWhatsApp
	if chatID == channel.DefaultChatID {
		ch = types.ChannelConsole
	}
	out := types.OutboundMessage{
		ID:      uuid.NewString(),
		Channel: ch,
		ChatID:  chatID,
		Text:    fmt.Sprintf("[Reminder] %s", text),
	}
	if err := o.send(ctx, out); err != nil {
		o.logger.Warn("orchestrator: failed to emit scheduled reminder", "chat_id", chatID, "error", err)
	}
}

// HandleInbound runs the full inbound algorithm described in the
// component design: channel filter, claim, empty-payload guard,
// persistence, confirmation resolution, direct commands, and finally
// the ReAct loop. Failures are recorded as an audit event and answered
// with a best-effort apology; they are never bubbled to the caller so
// the channel's read loop stays alive.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg types.InboundMessage, traceID string) {
	if err := o.handleInbound(ctx, msg, traceID); err != nil {
		o.audit(ctx, traceID, "inbound.error", map[string]any{"error": err.Error()})
		o.logger.Error("orchestrator: inbound handling failed", "trace_id", traceID, "chat_id", msg.ChatID, "error", err)
		if sendErr := o.sendText(ctx, msg, "I hit an internal processing error while handling that request. Please try again."); sendErr != nil {
			o.logger.Warn("orchestrator: failed to send error reply", "trace_id", traceID, "error", sendErr)
		}
	}
}

func (o *Orchestrator) handleInbound(ctx context.Context, msg types.InboundMessage, traceID string) error {
	if msg.Channel == types.ChannelWhatsApp {
		if !msg.IsSelfChat {
			o.logger.Info("orchestrator: dropped inbound: not self-chat", "message_id", msg.ID, "chat_id", msg.ChatID)
			return nil
		}
		if !msg.IsFromMe && !identityMatches(msg.SenderID, msg.ChatID) {
			o.logger.Info("orchestrator: dropped inbound: identity mismatch", "message_id", msg.ID, "chat_id", msg.ChatID, "sender_id", msg.SenderID)
			return nil
		}
	}

	owned, err := o.store.ClaimLedger(ctx, msg.ID, types.DirectionInbound, msg.ChatID)
	if err != nil {
		return fmt.Errorf("claim ledger: %w", err)
	}
	if !owned {
		reason := "already present in the inbound ledger"
		if msg.Channel == types.ChannelWhatsApp {
			outboundDir := types.DirectionOutbound
			if contains, _ := o.store.LedgerContains(ctx, msg.ID, &outboundDir); contains {
				reason = "matches an outbound ledger entry (echo)"
			}
		}
		o.logger.Info("orchestrator: dropped inbound: already claimed", "message_id", msg.ID, "chat_id", msg.ChatID, "reason", reason)
		return nil
	}

	if msg.Channel == types.ChannelWhatsApp && !msg.HasPayload() {
		o.logger.Info("orchestrator: dropped inbound: empty payload", "message_id", msg.ID, "chat_id", msg.ChatID)
		return nil
	}

	text := effectiveText(msg.Text, msg.Media)

	if err := o.store.InsertMessage(ctx, types.Message{
		ID:        msg.ID,
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Role:      types.RoleUser,
		Text:      redact.Mask(text),
		TraceID:   traceID,
		CreatedAt: o.now(),
	}); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}
	if err := o.redactedLog.Write("inbound.message", map[string]any{
		"message_id": msg.ID,
		"channel":    string(msg.Channel),
		"chat_id":    msg.ChatID,
		"sender_id":  msg.SenderID,
		"text":       text,
	}); err != nil {
		o.logger.Warn("orchestrator: failed to write redacted log", "error", err)
	}
	o.mem.AppendTurn(msg.ChatID, types.RoleUser, text)

	if strings.TrimSpace(msg.Text) != "" {
		resolved, ok, err := o.policy.ResolvePendingActionFromText(ctx, msg.ChatID, msg.Text)
		if err != nil {
			return fmt.Errorf("resolve pending action: %w", err)
		}
		if ok {
			if resolved.Status == types.PendingStatusApproved {
				return o.executeToolAndReply(ctx, msg, traceID, resolved.ProposedArgs.Tool, resolved.ProposedArgs.Args, true)
			}
			return o.sendText(ctx, msg, "Cancelled pending action.")
		}
	}

	direct, directErr := parseDirectCommand(msg.Text)
	if directErr != nil {
		if err := o.sendText(ctx, msg, directErr.Error()); err != nil {
			return err
		}
		o.journal(fmt.Sprintf("response chat_id=%s", msg.ChatID))
		return nil
	}
	if direct != nil {
		return o.executeToolAndReply(ctx, msg, traceID, direct.Tool, direct.Args, false)
	}

	return o.runReactLoop(ctx, msg, traceID)
}

// executeToolAndReply runs a tool to completion outside the ReAct loop
// (used by confirmation resumption and direct commands): invoke, then
// either request confirmation or send the result directly.
func (o *Orchestrator) executeToolAndReply(ctx context.Context, msg types.InboundMessage, traceID, toolName string, args map[string]any, confirmed bool) error {
	result, err := o.invokeTool(ctx, msg.ChatID, toolName, args, confirmed)
	if err != nil {
		return fmt.Errorf("invoke tool %s: %w", toolName, err)
	}

	if result.RequiresConfirmation {
		return o.requestConfirmation(ctx, msg, toolName, result.RiskLevel, args)
	}

	if err := o.emitArtifacts(ctx, msg, result); err != nil {
		o.logger.Warn("orchestrator: failed to emit artifacts", "error", err)
	}

	content := strings.TrimSpace(redact.Mask(result.Content))
	if content == "" {
		content = "Task completed, but there was no textual output."
	}
	if err := o.sendText(ctx, msg, content); err != nil {
		return err
	}
	o.audit(ctx, traceID, "tool.execute", map[string]any{"tool": toolName, "ok": result.OK})
	o.journal(fmt.Sprintf("tool=%s ok=%t chat_id=%s", toolName, result.OK, msg.ChatID))
	return nil
}

func (o *Orchestrator) invokeTool(ctx context.Context, chatID, toolName string, args map[string]any, confirmed bool) (tool.Result, error) {
	callArgs := make(map[string]any, len(args)+2)
	for k, v := range args {
		callArgs[k] = v
	}
	callArgs["chat_id"] = chatID
	if confirmed {
		callArgs["confirmed"] = true
	}
	return o.tools.Execute(ctx, toolName, callArgs)
}

func (o *Orchestrator) requestConfirmation(ctx context.Context, msg types.InboundMessage, toolName string, risk types.RiskLevel, args map[string]any) error {
	proposed := make(map[string]any, len(args)+1)
	for k, v := range args {
		proposed[k] = v
	}
	proposed["chat_id"] = msg.ChatID

	pending, err := o.policy.CreatePendingAction(ctx, msg.ChatID, toolName, risk, proposed, 0)
	if err != nil {
		return fmt.Errorf("create pending action: %w", err)
	}
	prompt := fmt.Sprintf("Confirmation required for %s (%s). Reply YES to proceed or NO to cancel. Action ID: %s", toolName, risk, pending.ActionID)
	return o.sendText(ctx, msg, prompt)
}

func (o *Orchestrator) emitArtifacts(ctx context.Context, msg types.InboundMessage, result tool.Result) error {
	if len(result.Artifacts) == 0 {
		return nil
	}
	attachments := make([]types.Attachment, 0, len(result.Artifacts))
	for _, a := range result.Artifacts {
		att := types.Attachment{}
		if v, ok := a["type"].(string); ok {
			att.Type = types.AttachmentType(v)
		}
		if v, ok := a["path"].(string); ok {
			att.Path = v
		}
		if v, ok := a["fileName"].(string); ok {
			att.FileName = v
		}
		if v, ok := a["mimeType"].(string); ok {
			att.MimeType = v
		}
		if v, ok := a["caption"].(string); ok {
			att.Caption = v
		}
		attachments = append(attachments, att)
	}

	out := types.OutboundMessage{
		ID:          uuid.NewString(),
		Channel:     msg.Channel,
		ChatID:      msg.ChatID,
		Attachments: attachments,
		ReplyTo:     msg.ID,
	}
	return o.send(ctx, out)
}
