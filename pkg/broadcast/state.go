package broadcast

import (
	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// State is the node state common to all strategies. It is owned by the
// consumer goroutine and never locked.
type State struct {
	values   *ValueSet
	topology map[string][]string
}

func NewState() *State {
	return &State{values: NewValueSet()}
}

func (s *State) Values() *ValueSet { return s.values }

// Add records v and reports whether it was new.
func (s *State) Add(v int64) bool {
	if !s.values.Add(v) {
		return false
	}
	telemetry.KnownValues.Set(float64(s.values.Len()))
	return true
}

// AddAll records vs and returns how many were new.
func (s *State) AddAll(vs []int64) int {
	added := s.values.AddAll(vs)
	if added > 0 {
		telemetry.KnownValues.Set(float64(s.values.Len()))
	}
	return added
}

// SetTopology replaces any previous topology.
func (s *State) SetTopology(t map[string][]string) {
	s.topology = t
}

// Neighbors returns self's adjacency list with self removed. ok is false if
// no topology has arrived or it does not mention self.
func (s *State) Neighbors(self string) (neighbors []string, ok bool) {
	adj, ok := s.topology[self]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(adj))
	for _, n := range adj {
		if n != self {
			out = append(out, n)
		}
	}
	return out, true
}

// HandleCommon answers read and topology. It reports false for any other
// body type so the caller can go on dispatching.
func (s *State) HandleCommon(env message.Envelope, out node.Outbox) (bool, error) {
	switch env.Type() {
	case message.TypeRead:
		return true, out.Reply(env, message.ReadOk{Messages: s.values.Sorted()})
	case message.TypeTopology:
		var t message.Topology
		if err := env.Unmarshal(&t); err != nil {
			return true, err
		}
		s.SetTopology(t.Topology)
		return true, out.Reply(env, message.TopologyOk{})
	}
	return false, nil
}
