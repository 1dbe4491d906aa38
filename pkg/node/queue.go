package node

import (
	"context"

	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/message"
)

type EventKind uint8

const (
	EventMessage EventKind = iota
	EventTick
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the consumer. Envelope is only set for
// EventMessage.
type Event struct {
	Kind     EventKind
	Envelope message.Envelope
}

// Queue is a bounded FIFO shared by all producers and drained by exactly
// one consumer. Events from one producer keep their order.
type Queue struct {
	events chan Event
}

const DefaultQueueCapacity = 4096

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{events: make(chan Event, capacity)}
}

// Push blocks while the queue is full.
func (q *Queue) Push(ctx context.Context, ev Event) error {
	select {
	case q.events <- ev:
		telemetry.QueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues ev only if there is room.
func (q *Queue) TryPush(ev Event) bool {
	select {
	case q.events <- ev:
		telemetry.QueueDepth.Inc()
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int { return len(q.events) }

func (q *Queue) pop() <-chan Event { return q.events }

func (q *Queue) popped() { telemetry.QueueDepth.Dec() }
