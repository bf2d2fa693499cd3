// Package bridge implements the reconnecting WebSocket client that
// carries the bridge wire protocol between this process and the
// WhatsApp bridge.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// ReconnectDelay is the fixed delay between reconnect attempts.
const ReconnectDelay = 2 * time.Second

// InboundHandler is invoked for each inbound message the bridge
// forwards, with the trace ID carried on its envelope.
type InboundHandler func(ctx context.Context, msg types.InboundMessage, traceID string)

// DeliveryHandler is invoked for each provider message ID a delivery
// receipt confirms, scoped to a chat.
type DeliveryHandler func(providerMessageID, chatID string)

// Client is a reconnecting WebSocket client for the bridge protocol.
type Client struct {
	url          string
	sharedSecret string
	onInbound    InboundHandler
	onDelivery   DeliveryHandler
	logger       *slog.Logger
	dialer       *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer overrides the websocket dialer, for tests.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// New builds a Client targeting wsURL.
func New(wsURL, sharedSecret string, onInbound InboundHandler, onDelivery DeliveryHandler, opts ...Option) *Client {
	c := &Client{
		url:          wsURL,
		sharedSecret: sharedSecret,
		onInbound:    onInbound,
		onDelivery:   onDelivery,
		logger:       slog.Default().With("component", "bridge"),
		dialer:       websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunForever connects, reads frames until the connection drops, and
// reconnects after a fixed delay, until ctx is cancelled.
func (c *Client) RunForever(ctx context.Context) {
	headers := http.Header{}
	headers.Set("x-nexus-client", "core")
	if c.sharedSecret != "" {
		headers.Set("x-nexus-secret", c.sharedSecret)
	}

	c.logger.Info("bridge client starting", "url", c.url)
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, headers)
		if err != nil {
			c.logger.Warn("bridge connection error", "error", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.logger.Info("bridge client connected")

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Client) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(ReconnectDelay):
		return true
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("bridge connection closed", "error", err)
			return
		}
		c.handleFrame(ctx, raw)
	}
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("bridge received invalid JSON", "error", err)
		return
	}
	if env.Event == "" {
		c.logger.Warn("bridge received envelope without event")
		return
	}

	switch env.Event {
	case EventInboundMessage:
		c.handleInbound(ctx, env)
	case EventDeliveryReceipt:
		c.handleDelivery(env)
	case EventQR:
		c.logger.Info("bridge received bridge.qr")
	case EventConnected:
		c.logger.Info("bridge received bridge.connected")
	case EventDisconnected:
		c.logger.Info("bridge received bridge.disconnected")
	case EventError:
		c.logger.Warn("bridge reported bridge.error", "payload", string(env.Payload))
	case EventConnectionUpdate:
		c.logger.Info("bridge received bridge.connection_update", "payload", string(env.Payload))
	default:
		c.logger.Debug("bridge ignored unknown event", "event", env.Event)
	}
}

func (c *Client) handleInbound(ctx context.Context, env Envelope) {
	if c.onInbound == nil {
		return
	}
	for _, raw := range payloadElements(env.Payload) {
		var p inboundPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			c.logger.Warn("bridge inbound payload validation failed", "error", err)
			continue
		}
		msg := types.InboundMessage{
			ID:         p.ID,
			Channel:    types.ChannelWhatsApp,
			ChatID:     p.ChatID,
			SenderID:   p.SenderID,
			IsSelfChat: p.IsSelfChat,
			IsFromMe:   p.IsFromMe,
			Text:       p.Text,
			Media:      p.toMedia(),
			Timestamp:  time.Now(),
		}
		c.onInbound(ctx, msg, env.TraceID)
	}
}

func (c *Client) handleDelivery(env Envelope) {
	if c.onDelivery == nil {
		return
	}
	for _, raw := range payloadElements(env.Payload) {
		var p deliveryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			c.logger.Warn("bridge delivery payload validation failed", "error", err)
			continue
		}
		if p.ChatID == "" {
			continue
		}
		seen := make(map[string]struct{})
		if p.ProviderMessageID != "" {
			seen[p.ProviderMessageID] = struct{}{}
			c.onDelivery(p.ProviderMessageID, p.ChatID)
		}
		for _, id := range p.ProviderMessageIDs {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			c.onDelivery(id, p.ChatID)
		}
	}
}

// SendOutbound sends an outbound message to the bridge. A no-op,
// logged as a warning, when the socket is not currently connected.
func (c *Client) SendOutbound(msg types.OutboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal outbound message: %w", err)
	}
	return c.send(EventOutboundMessage, payload)
}

// Send implements the orchestrator's Sender interface over SendOutbound;
// the bridge protocol itself has no per-message context, so ctx is
// accepted only to satisfy the interface shape shared with other channels.
func (c *Client) Send(_ context.Context, msg types.OutboundMessage) error {
	return c.SendOutbound(msg)
}

// SendAck acknowledges processing of an inbound message.
func (c *Client) SendAck(inboundID string) error {
	payload, err := json.Marshal(map[string]string{"inbound_id": inboundID})
	if err != nil {
		return fmt.Errorf("bridge: marshal ack: %w", err)
	}
	return c.send(EventAck, payload)
}

func (c *Client) send(event string, payload json.RawMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Warn("outbound dropped because bridge socket is not connected", "event", event)
		return nil
	}

	env := Envelope{Event: event, Payload: payload}
	buf, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bridge: marshal envelope: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, buf)
}
