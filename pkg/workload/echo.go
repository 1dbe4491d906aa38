package workload

import (
	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// Echo answers every echo with the same text.
type Echo struct{}

func (Echo) HandleMessage(env message.Envelope, out node.Outbox) error {
	if env.Type() != message.TypeEcho {
		return nil
	}
	var e message.Echo
	if err := env.Unmarshal(&e); err != nil {
		return err
	}
	return out.Reply(env, message.EchoOk{Echo: e.Echo})
}

func (Echo) HandleTick(node.Outbox) error { return nil }
