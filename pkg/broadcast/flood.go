package broadcast

import (
	"go.uber.org/zap"

	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// Flood forwards a value the first time it is seen and never again, so each
// value crosses each edge at most once per direction. The sender of a value
// is left out of the fan-out since it already has it.
type Flood struct {
	state  *State
	logger *zap.Logger
}

func NewFlood(logger *zap.Logger) *Flood {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flood{state: NewState(), logger: logger}
}

func (f *Flood) State() *State { return f.state }

func (f *Flood) HandleMessage(env message.Envelope, out node.Outbox) error {
	if env.Type() != message.TypeBroadcast {
		_, err := f.state.HandleCommon(env, out)
		return err
	}

	var b message.Broadcast
	if err := env.Unmarshal(&b); err != nil {
		return err
	}
	if f.state.Add(b.Message) {
		for _, dest := range f.targets(out.Identity(), env.Src) {
			if err := out.Send(dest, message.Broadcast{Message: b.Message}); err != nil {
				return err
			}
		}
	}
	return out.Reply(env, message.BroadcastOk{})
}

// HandleTick does nothing; flooding happens as values arrive.
func (f *Flood) HandleTick(node.Outbox) error { return nil }

func (f *Flood) targets(self message.Identity, from string) []string {
	neighbors, ok := f.state.Neighbors(self.NodeID)
	if !ok {
		f.logger.Debug("no topology for self, flooding to all peers",
			zap.String("node", self.NodeID),
		)
		neighbors = self.Others()
	}
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		if n != from {
			out = append(out, n)
		}
	}
	return out
}
