package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingBody = errors.New("message: envelope has no body")
	ErrMissingType = errors.New("message: body has no type")
	// ErrMalformed wraps payload decode failures so callers can tell a bad
	// body apart from a failing transport.
	ErrMalformed = errors.New("message: malformed body")
)

// Payload is the type-specific part of a body.
type Payload interface {
	Type() string
}

// Header holds the correlation fields every body carries.
type Header struct {
	Type      string  `json:"type"`
	MsgID     *uint64 `json:"msg_id,omitempty"`
	InReplyTo *uint64 `json:"in_reply_to,omitempty"`
}

// Envelope is one addressed message. Body is kept raw so that a handler
// decodes only the payload kinds it implements.
type Envelope struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`

	header Header
}

// ID returns a pointer to v, for filling optional header fields.
func ID(v uint64) *uint64 { return &v }

// New builds an envelope whose body is p flattened with h. The body type is
// always taken from p.
func New(src, dest string, h Header, p Payload) (Envelope, error) {
	h.Type = p.Type()
	body, err := encodeBody(h, p)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Src: src, Dest: dest, Body: body, header: h}, nil
}

// MustNew is like New but panics on error. Payload types in this package
// always encode, so it is safe with them.
func MustNew(src, dest string, h Header, p Payload) Envelope {
	env, err := New(src, dest, h, p)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode parses a single transport line.
func Decode(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Body) == 0 {
		return Envelope{}, ErrMissingBody
	}
	if err := json.Unmarshal(env.Body, &env.header); err != nil {
		return Envelope{}, fmt.Errorf("decode body header: %w", err)
	}
	if env.header.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Encode serializes the envelope without a trailing newline.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e Envelope) Header() Header { return e.header }

func (e Envelope) Type() string { return e.header.Type }

// MsgID reports the sender-assigned id, if any.
func (e Envelope) MsgID() (uint64, bool) {
	if e.header.MsgID == nil {
		return 0, false
	}
	return *e.header.MsgID, true
}

// InReplyTo reports the id of the message this one answers, if any.
func (e Envelope) InReplyTo() (uint64, bool) {
	if e.header.InReplyTo == nil {
		return 0, false
	}
	return *e.header.InReplyTo, true
}

// Unmarshal decodes the body into v. Unknown fields, including the header
// fields, are ignored.
func (e Envelope) Unmarshal(v any) error {
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, e.header.Type, err)
	}
	return nil
}

func encodeBody(h Header, p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", h.Type, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s payload: not an object: %w", h.Type, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	if fields["type"], err = json.Marshal(h.Type); err != nil {
		return nil, err
	}
	if h.MsgID != nil {
		fields["msg_id"], _ = json.Marshal(*h.MsgID)
	}
	if h.InReplyTo != nil {
		fields["in_reply_to"], _ = json.Marshal(*h.InReplyTo)
	}
	return json.Marshal(fields)
}
