// Package cluster runs several nodes in one process, wired together over
// in-memory pipes, with a client that can talk to any of them. It stands in
// for the external network harness in tests and in cmd/sim.
package cluster

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

// ClientID is the src of every request the cluster's client sends.
const ClientID = "c1"

const inboxSize = 1 << 16

var ErrStopped = errors.New("cluster: stopped")

type Config struct {
	Nodes      int
	NewHandler func(id string) (node.Handler, error)
	// DropRate is the probability that a node-to-node envelope is lost.
	// Client traffic is never dropped.
	DropRate float64
	Seed     uint64
	Logger   *zap.Logger
	Options  []node.Option
}

type member struct {
	id    string
	inbox chan []byte
}

// Cluster is safe for concurrent use.
type Cluster struct {
	ids     []string
	members map[string]*member
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	pending map[uint64]chan message.Envelope

	rngMu    sync.Mutex
	rng      *rand.Rand
	dropRate float64

	nextID    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	overflow  atomic.Uint64

	g *errgroup.Group
}

// Start launches cfg.Nodes nodes named n0..n<N-1> and completes the init
// handshake with each of them. Cancelling ctx stops the nodes without
// draining; Stop drains them.
func Start(ctx context.Context, cfg Config) (*Cluster, error) {
	if cfg.Nodes < 1 {
		return nil, fmt.Errorf("cluster: need at least one node, got %d", cfg.Nodes)
	}
	if cfg.NewHandler == nil {
		return nil, errors.New("cluster: NewHandler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cluster{
		members:  make(map[string]*member, cfg.Nodes),
		logger:   logger,
		pending:  make(map[uint64]chan message.Envelope),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		dropRate: cfg.DropRate,
		g:        &errgroup.Group{},
	}
	for i := range cfg.Nodes {
		id := fmt.Sprintf("n%d", i)
		c.ids = append(c.ids, id)
		c.members[id] = &member{id: id, inbox: make(chan []byte, inboxSize)}
	}

	for _, id := range c.ids {
		h, err := cfg.NewHandler(id)
		if err != nil {
			c.Stop()
			return nil, fmt.Errorf("cluster: handler for %s: %w", id, err)
		}
		c.launch(ctx, c.members[id], node.New(h, logger.Named(id), cfg.Options...))
	}

	for _, id := range c.ids {
		if _, err := c.Call(ctx, id, message.Init{NodeID: id, NodeIDs: c.ids}); err != nil {
			c.Stop()
			return nil, fmt.Errorf("cluster: init %s: %w", id, err)
		}
	}
	return c, nil
}

func (c *Cluster) launch(ctx context.Context, m *member, n *node.Node) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	c.g.Go(func() error {
		err := n.Run(ctx, inR, outW)
		outW.Close()
		inR.CloseWithError(io.ErrClosedPipe)
		if err != nil {
			c.logger.Error("node stopped", zap.String("node", m.id), zap.Error(err))
			return fmt.Errorf("%s: %w", m.id, err)
		}
		return nil
	})
	c.g.Go(func() error {
		for line := range m.inbox {
			if _, err := inW.Write(line); err != nil {
				// the node is gone; keep draining so senders never block
				continue
			}
		}
		return inW.Close()
	})
	c.g.Go(func() error {
		c.route(m.id, outR)
		return nil
	})
}

// route reads everything a node writes and hands it to its destination.
func (c *Cluster) route(src string, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), node.DefaultMaxLineBytes)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		line = append(line, '\n')
		env, err := message.Decode(line)
		if err != nil {
			c.logger.Warn("undeliverable output", zap.String("node", src), zap.Error(err))
			continue
		}
		if _, ok := c.members[env.Dest]; ok {
			if c.drop() {
				c.dropped.Add(1)
				continue
			}
			c.deliver(env.Dest, line)
			continue
		}
		c.answer(env)
	}
}

func (c *Cluster) drop() bool {
	if c.dropRate <= 0 {
		return false
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64() < c.dropRate
}

func (c *Cluster) deliver(dest string, line []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return false
	}
	select {
	case c.members[dest].inbox <- line:
		c.delivered.Add(1)
		return true
	default:
		c.overflow.Add(1)
		return false
	}
}

func (c *Cluster) answer(env message.Envelope) {
	irt, ok := env.InReplyTo()
	if !ok {
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[irt]
	delete(c.pending, irt)
	c.mu.Unlock()
	if ok {
		ch <- env
	}
}

// Send delivers p to dest from the client without waiting for a reply.
func (c *Cluster) Send(dest string, p message.Payload) error {
	_, _, err := c.send(dest, p, false)
	return err
}

// Call delivers p to dest and waits for the correlated reply.
func (c *Cluster) Call(ctx context.Context, dest string, p message.Payload) (message.Envelope, error) {
	id, ch, err := c.send(dest, p, true)
	if err != nil {
		return message.Envelope{}, err
	}

	select {
	case env := <-ch:
		return env, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return message.Envelope{}, ctx.Err()
	}
}

func (c *Cluster) send(dest string, p message.Payload, await bool) (uint64, chan message.Envelope, error) {
	if _, ok := c.members[dest]; !ok {
		return 0, nil, fmt.Errorf("cluster: no node %q", dest)
	}
	id := c.nextID.Add(1)
	line, err := message.MustNew(ClientID, dest, message.Header{MsgID: message.ID(id)}, p).Encode()
	if err != nil {
		return 0, nil, err
	}
	var ch chan message.Envelope
	if await {
		ch = make(chan message.Envelope, 1)
		c.mu.Lock()
		c.pending[id] = ch
		c.mu.Unlock()
	}
	if !c.deliver(dest, append(line, '\n')) {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		if c.isStopped() {
			return 0, nil, ErrStopped
		}
		return 0, nil, fmt.Errorf("cluster: inbox of %s is full", dest)
	}
	return id, ch, nil
}

func (c *Cluster) isStopped() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopped
}

// Stop closes every node's input and waits until all of them have drained
// and exited.
func (c *Cluster) Stop() error {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		for _, m := range c.members {
			close(m.inbox)
		}
	}
	c.mu.Unlock()
	return c.g.Wait()
}

func (c *Cluster) IDs() []string { return append([]string(nil), c.ids...) }

type Stats struct {
	Delivered uint64
	Dropped   uint64
	Overflow  uint64
}

func (c *Cluster) Stats() Stats {
	return Stats{
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Overflow:  c.overflow.Load(),
	}
}

// SetTopology sends topo to every node and waits for each topology_ok.
func (c *Cluster) SetTopology(ctx context.Context, topo map[string][]string) error {
	for _, id := range c.ids {
		if _, err := c.Call(ctx, id, message.Topology{Topology: topo}); err != nil {
			return fmt.Errorf("cluster: topology %s: %w", id, err)
		}
	}
	return nil
}

// Broadcast hands v to node id and waits for broadcast_ok.
func (c *Cluster) Broadcast(ctx context.Context, id string, v int64) error {
	_, err := c.Call(ctx, id, message.Broadcast{Message: v})
	return err
}

// Read returns the values node id reports.
func (c *Cluster) Read(ctx context.Context, id string) ([]int64, error) {
	env, err := c.Call(ctx, id, message.Read{})
	if err != nil {
		return nil, err
	}
	var ok message.ReadOk
	if err := env.Unmarshal(&ok); err != nil {
		return nil, err
	}
	return ok.Messages, nil
}

// Converged reports whether every node reads exactly want.
func (c *Cluster) Converged(ctx context.Context, want []int64) (bool, error) {
	for _, id := range c.ids {
		got, err := c.Read(ctx, id)
		if err != nil {
			return false, err
		}
		if !slices.Equal(got, want) {
			return false, nil
		}
	}
	return true, nil
}
