// Package channel defines the Channel interface every inbound source
// implements and the fan-in aggregator that funnels every source onto
// a single channel for the orchestrator's dispatch loop.
package channel

import (
	"context"
	"sync"

	"github.com/liamdatt/nexus/internal/assistant/types"
)

// Envelope pairs an inbound message with the trace ID its source
// assigned it.
type Envelope struct {
	Message types.InboundMessage
	TraceID string
}

// Channel is an inbound message source plus an outbound sink for one
// delivery surface.
type Channel interface {
	// Messages returns the channel this source publishes inbound
	// envelopes on. Closed when the source stops.
	Messages() <-chan Envelope
	// Send delivers an outbound message through this channel.
	Send(ctx context.Context, msg types.OutboundMessage) error
}

// Aggregate fans in every channel's Messages() onto a single output
// channel. Each source is forwarded until it closes or ctx is
// cancelled; the output channel is closed once every forwarder has
// returned.
func Aggregate(ctx context.Context, channels ...Channel) <-chan Envelope {
	out := make(chan Envelope)
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case env, ok := <-c.Messages():
					if !ok {
						return
					}
					select {
					case out <- env:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
