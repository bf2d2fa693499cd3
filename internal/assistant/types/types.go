// Package types holds the data model shared across the assistant's
// components: inbound/outbound messages, the ledger, pending actions,
// scheduled jobs, and audit events. Kept dependency-free so every other
// assistant package can import it without risking an import cycle.
package types

import "time"

// Channel identifies where a message originated or is destined.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelConsole  Channel = "console"
)

// MediaType enumerates the media kinds a WhatsApp message may carry.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
)

// Media describes one inbound media item.
type Media struct {
	Type     MediaType
	MimeType string
	FileName string
	Caption  string
}

// InboundMessage is an immutable record produced by a channel adapter.
type InboundMessage struct {
	ID         string
	Channel    Channel
	ChatID     string
	SenderID   string
	IsSelfChat bool
	IsFromMe   bool
	Text       string
	Media      []Media
	Timestamp  time.Time
}

// HasPayload reports whether the message carries text or media.
func (m InboundMessage) HasPayload() bool {
	return m.Text != "" || len(m.Media) > 0
}

// AttachmentType enumerates the outbound attachment kinds.
type AttachmentType string

const (
	AttachmentDocument AttachmentType = "document"
	AttachmentImage    AttachmentType = "image"
)

// Attachment is a file attached to an outbound message.
type Attachment struct {
	Type     AttachmentType
	Path     string
	FileName string
	MimeType string
	Caption  string
}

// OutboundMessage is a reply the orchestrator hands to a channel adapter.
type OutboundMessage struct {
	ID          string
	Channel     Channel
	ChatID      string
	Text        string
	Attachments []Attachment
	ReplyTo     string
}

// Direction distinguishes ledger entries by travel direction.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageRole labels a persisted message's author.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a persisted conversation turn.
type Message struct {
	ID        string
	Channel   Channel
	ChatID    string
	SenderID  string
	Role      MessageRole
	Text      string
	TraceID   string
	CreatedAt time.Time
}

// RiskLevel is a tool's declared risk, driving confirmation policy.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PendingStatus is the lifecycle state of a PendingAction.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusDenied   PendingStatus = "denied"
	PendingStatusExpired  PendingStatus = "expired"
)

// ProposedAction is the serialized {tool, args} pair a confirmation resumes.
type ProposedAction struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// PendingAction is a persisted proposal awaiting a YES/NO confirmation.
type PendingAction struct {
	ActionID     string
	ToolName     string
	RiskLevel    RiskLevel
	ExpiresAt    time.Time
	ProposedArgs ProposedAction
	Status       PendingStatus
	ChatID       string
	CreatedAt    time.Time
}

// JobKind distinguishes recurring cron jobs from one-shot date jobs.
type JobKind string

const (
	JobKindCron JobKind = "cron"
	JobKindDate JobKind = "date"
)

// JobSpec is the free-text schedule and reminder body for a Job.
type JobSpec struct {
	When string  `json:"when"`
	Text string  `json:"text"`
	Kind JobKind `json:"kind"`
}

// Job is a scheduled reminder.
type Job struct {
	JobID     string
	ChatID    string
	Spec      JobSpec
	NextRunAt *time.Time
	CreatedAt time.Time
}

// AuditEvent is an append-only record of something the orchestrator did.
type AuditEvent struct {
	ID        int64
	TraceID   string
	Event     string
	Payload   map[string]any
	CreatedAt time.Time
}
