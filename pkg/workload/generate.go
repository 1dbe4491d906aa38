package workload

import (
	"strconv"

	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// Generate hands out ids of the form "<node>-<n>". Node ids are unique in a
// cluster and n only grows, so ids never collide without coordination.
type Generate struct {
	next uint64
}

func (g *Generate) HandleMessage(env message.Envelope, out node.Outbox) error {
	if env.Type() != message.TypeGenerate {
		return nil
	}
	id := out.Identity().NodeID + "-" + strconv.FormatUint(g.next, 10)
	g.next++
	return out.Reply(env, message.GenerateOk{ID: id})
}

func (*Generate) HandleTick(node.Outbox) error { return nil }
