package node

import (
	"context"

	"github.com/ryandielhenn/broadcaster/pkg/message"
)

// Outbox is what a handler may use to talk to other nodes.
type Outbox interface {
	Identity() message.Identity
	Send(dest string, p message.Payload) error
	Reply(original message.Envelope, p message.Payload) error
}

// Handler is the per-node program. Both methods run on the consumer
// goroutine, one event at a time, so implementations need no locking.
//
// A returned error stops the node unless it wraps message.ErrMalformed, in
// which case the event is logged and dropped.
type Handler interface {
	HandleMessage(env message.Envelope, out Outbox) error
	HandleTick(out Outbox) error
}

// Producer feeds background events into the queue until ctx is done.
type Producer interface {
	Run(ctx context.Context, q *Queue) error
}

// ProducerSource is implemented by handlers that need background events,
// typically a Ticker.
type ProducerSource interface {
	Producers() []Producer
}
