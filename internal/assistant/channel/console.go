package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

const (
	// DefaultChatID is the synthetic chat identity every console
	// message is attributed to.
	DefaultChatID = "cli-user"
	// DefaultPrompt is printed before reading each line.
	DefaultPrompt = "nexus> "
	// ReplyPrefix is printed before each outbound line.
	ReplyPrefix = "nexus: "
)

var quitWords = map[string]struct{}{"exit": {}, "quit": {}}

// Console is the stdin/stdout channel: every line the user types
// becomes an inbound message from the synthetic cli-user identity, and
// every outbound message is printed with a fixed reply prefix.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string

	messages chan Envelope
}

// NewConsole builds a Console reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		prompt:   DefaultPrompt,
		messages: make(chan Envelope),
	}
}

// Messages implements Channel.
func (c *Console) Messages() <-chan Envelope { return c.messages }

// Send implements Channel: prints text with the reply prefix.
func (c *Console) Send(_ context.Context, msg types.OutboundMessage) error {
	_, err := fmt.Fprintf(c.out, "%s%s\n", ReplyPrefix, msg.Text)
	return err
}

// Run reads lines from stdin until EOF, "exit", or "quit", publishing
// each non-blank line as an inbound message. Closes its Messages
// channel on return.
func (c *Console) Run(ctx context.Context) {
	defer close(c.messages)

	for {
		if ctx.Err() != nil {
			return
		}

		if c.prompt != "" {
			fmt.Fprint(c.out, c.prompt)
		}

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		text := strings.TrimRight(line, "\n")

		if _, isQuit := quitWords[strings.ToLower(strings.TrimSpace(text))]; isQuit {
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		msg := types.InboundMessage{
			ID:         uuid.NewString(),
			Channel:    types.ChannelConsole,
			ChatID:     DefaultChatID,
			SenderID:   DefaultChatID,
			IsSelfChat: true,
			IsFromMe:   false,
			Text:       text,
			Timestamp:  time.Now().UTC(),
		}

		select {
		case c.messages <- Envelope{Message: msg, TraceID: uuid.NewString()}:
		case <-ctx.Done():
			return
		}
	}
}
