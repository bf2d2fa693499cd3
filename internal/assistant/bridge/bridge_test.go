package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

func TestPayloadElements(t *testing.T) {
	single := json.RawMessage(`{"a":1}`)
	if got := payloadElements(single); len(got) != 1 {
		t.Fatalf("expected 1 element for object payload, got %d", len(got))
	}

	arr := json.RawMessage(`[{"a":1},{"a":2}]`)
	if got := payloadElements(arr); len(got) != 2 {
		t.Fatalf("expected 2 elements for array payload, got %d", len(got))
	}

	if got := payloadElements(nil); got != nil {
		t.Fatalf("expected nil for empty payload, got %+v", got)
	}
}

func TestHandleFrame_InboundMessage(t *testing.T) {
	var mu sync.Mutex
	var got types.InboundMessage
	var gotTrace string

	c := New("ws://example.invalid", "", func(_ context.Context, msg types.InboundMessage, traceID string) {
		mu.Lock()
		got = msg
		gotTrace = traceID
		mu.Unlock()
	}, nil)

	frame := `{"event":"bridge.inbound_message","trace_id":"t-1","payload":{"id":"m1","chat_id":"c1","sender_id":"s1","text":"hi"}}`
	c.handleFrame(context.Background(), []byte(frame))

	mu.Lock()
	defer mu.Unlock()
	if got.ID != "m1" || got.ChatID != "c1" || got.Text != "hi" || gotTrace != "t-1" {
		t.Fatalf("unexpected handled inbound message: %+v trace=%s", got, gotTrace)
	}
}

func TestHandleFrame_InboundMessage_WithMedia(t *testing.T) {
	var mu sync.Mutex
	var got types.InboundMessage

	c := New("ws://example.invalid", "", func(_ context.Context, msg types.InboundMessage, _ string) {
		mu.Lock()
		got = msg
		mu.Unlock()
	}, nil)

	frame := `{"event":"bridge.inbound_message","payload":{"id":"m2","chat_id":"c1","sender_id":"s1","media":[{"type":"image","mime_type":"image/jpeg","file_name":"photo.jpg","caption":"look at this"}]}}`
	c.handleFrame(context.Background(), []byte(frame))

	mu.Lock()
	defer mu.Unlock()
	if len(got.Media) != 1 {
		t.Fatalf("expected 1 media item, got %d", len(got.Media))
	}
	m := got.Media[0]
	if m.Type != types.MediaImage || m.MimeType != "image/jpeg" || m.FileName != "photo.jpg" || m.Caption != "look at this" {
		t.Fatalf("unexpected media item: %+v", m)
	}
	if !got.HasPayload() {
		t.Fatalf("expected HasPayload true for media-only message")
	}
}

func TestHandleFrame_DeliveryReceipt_Dedup(t *testing.T) {
	var mu sync.Mutex
	var ids []string

	c := New("ws://example.invalid", "", nil, func(providerMessageID, chatID string) {
		mu.Lock()
		ids = append(ids, providerMessageID)
		mu.Unlock()
	})

	frame := `{"event":"bridge.delivery_receipt","payload":{"provider_message_id":"p1","provider_message_ids":["p1","p2"],"chat_id":"c1"}}`
	c.handleFrame(context.Background(), []byte(frame))

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Fatalf("expected deduplicated [p1 p2], got %+v", ids)
	}
}

func TestHandleFrame_UnknownEventIgnored(t *testing.T) {
	c := New("ws://example.invalid", "", nil, nil)
	// Must not panic on an event with no registered handler.
	c.handleFrame(context.Background(), []byte(`{"event":"bridge.something_new"}`))
}

func TestSendOutbound_NotConnected(t *testing.T) {
	c := New("ws://example.invalid", "", nil, nil)
	if err := c.SendOutbound(types.OutboundMessage{ChatID: "c1", Text: "hi"}); err != nil {
		t.Fatalf("expected no error when socket not connected, got %v", err)
	}
}

func TestRunForever_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections int32
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		connections++
		mu.Unlock()
		conn.Close() // drop immediately to trigger reconnect
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]

	var inboundMu sync.Mutex
	var gotAny bool
	c := New(wsURL, "", func(context.Context, types.InboundMessage, string) {
		inboundMu.Lock()
		gotAny = true
		inboundMu.Unlock()
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*ReconnectDelay+500*time.Millisecond)
	defer cancel()

	c.RunForever(ctx)

	mu.Lock()
	defer mu.Unlock()
	if connections < 2 {
		t.Fatalf("expected at least 2 connection attempts within the reconnect window, got %d", connections)
	}
	_ = gotAny
}
