package gossip

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/broadcast"
	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// Policy decides when a neighbor's knowledge grows.
type Policy uint8

const (
	// Confirmed only credits a neighbor with values it has gossiped to us.
	Confirmed Policy = iota
	// Optimistic also credits a neighbor with every unknown value sent to
	// it, as soon as the gossip is written.
	Optimistic
)

func (p Policy) String() string {
	switch p {
	case Confirmed:
		return "confirmed"
	case Optimistic:
		return "optimistic"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "confirmed":
		return Confirmed, nil
	case "optimistic":
		return Optimistic, nil
	default:
		return 0, fmt.Errorf("unknown knowledge policy %q (want confirmed or optimistic)", s)
	}
}

const (
	DefaultTickInterval = 200 * time.Millisecond
	MinTickInterval     = 10 * time.Millisecond
	MaxTickInterval     = 10 * time.Second
	DefaultFanout       = 5
	DefaultRepairSample = 5
)

type Config struct {
	TickInterval time.Duration
	// Fanout is how many random peers get gossip per tick when the
	// topology does not name this node.
	Fanout int
	// RepairSample is how many already-known values ride along with each
	// gossip message.
	RepairSample int
	Policy       Policy
}

func DefaultConfig() Config {
	return Config{
		TickInterval: DefaultTickInterval,
		Fanout:       DefaultFanout,
		RepairSample: DefaultRepairSample,
		Policy:       Confirmed,
	}
}

func (c Config) Validate() error {
	if c.TickInterval < MinTickInterval || c.TickInterval > MaxTickInterval {
		return fmt.Errorf("tick interval %s outside [%s, %s]", c.TickInterval, MinTickInterval, MaxTickInterval)
	}
	if c.Fanout < 1 {
		return fmt.Errorf("fanout must be at least 1, got %d", c.Fanout)
	}
	if c.RepairSample < 0 {
		return fmt.Errorf("repair sample must not be negative, got %d", c.RepairSample)
	}
	return nil
}

// Gossiper is the gossip strategy. All methods run on the node's consumer
// goroutine.
type Gossiper struct {
	cfg     Config
	state   *broadcast.State
	known   map[string]*broadcast.ValueSet // neighbor -> values it is known to have
	sampler Sampler
	logger  *zap.Logger
}

// New validates cfg. A nil sampler draws from a randomly seeded source.
func New(cfg Config, sampler Sampler, logger *zap.Logger) (*Gossiper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = NewRandSampler(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gossiper{
		cfg:     cfg,
		state:   broadcast.NewState(),
		known:   make(map[string]*broadcast.ValueSet),
		sampler: sampler,
		logger:  logger,
	}, nil
}

func (g *Gossiper) State() *broadcast.State { return g.state }

// Knows reports whether neighbor is believed to have v.
func (g *Gossiper) Knows(neighbor string, v int64) bool {
	s, ok := g.known[neighbor]
	return ok && s.Has(v)
}

func (g *Gossiper) Producers() []node.Producer {
	return []node.Producer{node.Ticker{Interval: g.cfg.TickInterval}}
}

func (g *Gossiper) HandleMessage(env message.Envelope, out node.Outbox) error {
	switch env.Type() {
	case message.TypeBroadcast:
		var b message.Broadcast
		if err := env.Unmarshal(&b); err != nil {
			return err
		}
		g.state.Add(b.Message)
		return out.Reply(env, message.BroadcastOk{})

	case message.TypeGossip:
		var m message.Gossip
		if err := env.Unmarshal(&m); err != nil {
			return err
		}
		if added := g.state.AddAll(m.Messages); added > 0 {
			g.logger.Debug("learned values from gossip",
				zap.String("from", env.Src),
				zap.Int("new", added),
			)
		}
		// The sender evidently has these already.
		g.knowledge(env.Src).AddAll(m.Messages)
		return nil
	}

	_, err := g.state.HandleCommon(env, out)
	return err
}

// HandleTick sends one gossip message to each neighbor chosen for this
// round.
func (g *Gossiper) HandleTick(out node.Outbox) error {
	all := g.state.Values().Sorted()
	if len(all) == 0 {
		return nil
	}

	for _, dest := range g.neighbors(out.Identity()) {
		known := g.knowledge(dest)
		acked, unknown := split(all, known)
		repair := g.sampleValues(acked)

		payload := make([]int64, 0, len(unknown)+len(repair))
		payload = append(payload, unknown...)
		payload = append(payload, repair...)
		if len(payload) == 0 {
			continue
		}
		slices.Sort(payload)

		if err := out.Send(dest, message.Gossip{Messages: payload}); err != nil {
			return err
		}
		telemetry.GossipValuesSent.WithLabelValues("unknown").Add(float64(len(unknown)))
		telemetry.GossipValuesSent.WithLabelValues("repair").Add(float64(len(repair)))

		if g.cfg.Policy == Optimistic {
			known.AddAll(unknown)
		}
	}
	return nil
}

func (g *Gossiper) neighbors(self message.Identity) []string {
	if adj, ok := g.state.Neighbors(self.NodeID); ok {
		return adj
	}
	peers := self.Others()
	idx := g.sampler.Sample(len(peers), g.cfg.Fanout)
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, peers[i])
	}
	return out
}

func (g *Gossiper) sampleValues(from []int64) []int64 {
	idx := g.sampler.Sample(len(from), g.cfg.RepairSample)
	out := make([]int64, 0, len(idx))
	for _, i := range idx {
		out = append(out, from[i])
	}
	return out
}

func (g *Gossiper) knowledge(neighbor string) *broadcast.ValueSet {
	s, ok := g.known[neighbor]
	if !ok {
		s = broadcast.NewValueSet()
		g.known[neighbor] = s
	}
	return s
}

// split partitions sorted values by membership in known, keeping order.
func split(values []int64, known *broadcast.ValueSet) (in, notIn []int64) {
	for _, v := range values {
		if known.Has(v) {
			in = append(in, v)
		} else {
			notIn = append(notIn, v)
		}
	}
	return in, notIn
}
