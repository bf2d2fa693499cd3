package bridge

import (
	"encoding/json"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// Envelope is every frame exchanged over the bridge WebSocket: an
// event name plus an arbitrary JSON payload.
type Envelope struct {
	Event   string          `json:"event"`
	TraceID string          `json:"trace_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event names understood on the bridge-to-orchestrator direction.
const (
	EventInboundMessage   = "bridge.inbound_message"
	EventDeliveryReceipt  = "bridge.delivery_receipt"
	EventQR               = "bridge.qr"
	EventConnected        = "bridge.connected"
	EventDisconnected     = "bridge.disconnected"
	EventError            = "bridge.error"
	EventConnectionUpdate = "bridge.connection_update"
)

// Event names sent on the orchestrator-to-bridge direction.
const (
	EventOutboundMessage = "core.outbound_message"
	EventAck             = "core.ack"
)

// inboundPayload mirrors the wire shape of one bridge.inbound_message
// payload element.
type inboundPayload struct {
	ID         string         `json:"id"`
	ChatID     string         `json:"chat_id"`
	SenderID   string         `json:"sender_id"`
	IsSelfChat bool           `json:"is_self_chat"`
	IsFromMe   bool           `json:"is_from_me"`
	Text       string         `json:"text"`
	Media      []mediaPayload `json:"media"`
}

// mediaPayload mirrors one element of an inbound message's media list.
type mediaPayload struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	Caption  string `json:"caption"`
}

// toMedia converts the wire media list to the domain type.
func (p inboundPayload) toMedia() []types.Media {
	if len(p.Media) == 0 {
		return nil
	}
	out := make([]types.Media, len(p.Media))
	for i, m := range p.Media {
		out[i] = types.Media{
			Type:     types.MediaType(m.Type),
			MimeType: m.MimeType,
			FileName: m.FileName,
			Caption:  m.Caption,
		}
	}
	return out
}

// deliveryPayload mirrors one bridge.delivery_receipt payload element.
type deliveryPayload struct {
	ProviderMessageID  string   `json:"provider_message_id"`
	ProviderMessageIDs []string `json:"provider_message_ids"`
	ChatID             string   `json:"chat_id"`
}

// payloadElements normalizes a payload that may be a single object or
// an array of objects into a slice, matching the bridge's convention of
// batching same-kind events.
func payloadElements(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	return []json.RawMessage{raw}
}
