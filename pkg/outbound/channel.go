// Package outbound is the single writer of a node's output stream. It
// numbers every envelope a node emits and writes each one as a whole line.
package outbound

import (
	"fmt"
	"io"

	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/message"
)

// Channel is not safe for concurrent use; the runtime only calls it from
// its consumer goroutine.
type Channel struct {
	w    io.Writer
	self message.Identity
	next uint64
	buf  []byte
}

func New(w io.Writer) *Channel {
	return &Channel{w: w}
}

// Bind sets the identity used as src on every outgoing envelope. It is
// called once, by the handshake.
func (c *Channel) Bind(id message.Identity) {
	c.self = id
}

func (c *Channel) Identity() message.Identity {
	return c.self
}

// Send emits p to dest with a fresh msg_id.
func (c *Channel) Send(dest string, p message.Payload) error {
	return c.emit(dest, message.Header{MsgID: message.ID(c.nextID())}, p)
}

// Reply answers original: dest is its src and in_reply_to its msg_id.
func (c *Channel) Reply(original message.Envelope, p message.Payload) error {
	h := message.Header{MsgID: message.ID(c.nextID())}
	if id, ok := original.MsgID(); ok {
		h.InReplyTo = message.ID(id)
	}
	return c.emit(original.Src, h, p)
}

func (c *Channel) nextID() uint64 {
	id := c.next
	c.next++
	return id
}

func (c *Channel) emit(dest string, h message.Header, p message.Payload) error {
	env, err := message.New(c.self.NodeID, dest, h, p)
	if err != nil {
		return err
	}
	line, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s to %s: %w", p.Type(), dest, err)
	}
	c.buf = append(append(c.buf[:0], line...), '\n')
	if _, err := c.w.Write(c.buf); err != nil {
		return fmt.Errorf("write %s to %s: %w", p.Type(), dest, err)
	}
	telemetry.EnvelopesSent.WithLabelValues(p.Type()).Inc()
	return nil
}
