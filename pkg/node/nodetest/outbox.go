// Package nodetest provides an in-memory node.Outbox for handler tests.
package nodetest

import (
	"github.com/ryandielhenn/broadcaster/pkg/message"
)

// Sent is one recorded Send or Reply.
type Sent struct {
	Dest      string
	InReplyTo *uint64
	Payload   message.Payload
}

func (s Sent) Type() string { return s.Payload.Type() }

// Outbox records everything a handler emits instead of writing it.
// If Err is set, every call fails with it and records nothing.
type Outbox struct {
	ID   message.Identity
	Sent []Sent
	Err  error
}

func NewOutbox(self string, peers ...string) *Outbox {
	return &Outbox{ID: message.Identity{NodeID: self, PeerIDs: peers}}
}

func (o *Outbox) Identity() message.Identity { return o.ID }

func (o *Outbox) Send(dest string, p message.Payload) error {
	if o.Err != nil {
		return o.Err
	}
	o.Sent = append(o.Sent, Sent{Dest: dest, Payload: p})
	return nil
}

func (o *Outbox) Reply(original message.Envelope, p message.Payload) error {
	if o.Err != nil {
		return o.Err
	}
	s := Sent{Dest: original.Src, Payload: p}
	if id, ok := original.MsgID(); ok {
		s.InReplyTo = message.ID(id)
	}
	o.Sent = append(o.Sent, s)
	return nil
}

// OfType returns the recorded envelopes with the given body type, in order.
func (o *Outbox) OfType(typ string) []Sent {
	var out []Sent
	for _, s := range o.Sent {
		if s.Type() == typ {
			out = append(out, s)
		}
	}
	return out
}

// To returns the recorded envelopes addressed to dest, in order.
func (o *Outbox) To(dest string) []Sent {
	var out []Sent
	for _, s := range o.Sent {
		if s.Dest == dest {
			out = append(out, s)
		}
	}
	return out
}

func (o *Outbox) Reset() { o.Sent = nil }

// Request builds an incoming envelope from src to the outbox's node.
func (o *Outbox) Request(src string, msgID uint64, p message.Payload) message.Envelope {
	return message.MustNew(src, o.ID.NodeID, message.Header{MsgID: message.ID(msgID)}, p)
}
