package node

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryandielhenn/broadcaster/internal/telemetry"
	"github.com/ryandielhenn/broadcaster/pkg/message"
	"github.com/ryandielhenn/broadcaster/pkg/outbound"
)

var (
	ErrNoInput = errors.New("node: input closed before init")
	ErrNotInit = errors.New("node: first envelope is not init")
)

const DefaultMaxLineBytes = 1 << 20

type config struct {
	queueCapacity int
	maxLineBytes  int
	onInit        func(message.Identity)
}

type Option func(*config)

func WithQueueCapacity(n int) Option {
	return func(c *config) {
		c.queueCapacity = n
	}
}

func WithMaxLineBytes(n int) Option {
	return func(c *config) {
		c.maxLineBytes = n
	}
}

// WithOnInit registers fn to run once the handshake has completed, before
// any other event is handled.
func WithOnInit(fn func(message.Identity)) Option {
	return func(c *config) {
		c.onInit = fn
	}
}

// Node runs one Handler against a line-oriented transport. Input lines and
// background producer events are merged into one Queue; a single consumer
// goroutine owns the handler and the output stream.
type Node struct {
	handler Handler
	logger  *zap.Logger
	cfg     config
}

func New(h Handler, logger *zap.Logger, opts ...Option) *Node {
	cfg := config{
		queueCapacity: DefaultQueueCapacity,
		maxLineBytes:  DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{handler: h, logger: logger, cfg: cfg}
}

// Run performs the init handshake on in, then serves events until in is
// exhausted and every queued event has been handled, or ctx is cancelled.
// Malformed input lines are logged and skipped. A failed write is fatal.
//
// The reader goroutine cannot be interrupted while blocked on in; if ctx is
// cancelled first it exits on the next line or when in is closed.
func (n *Node) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64<<10), n.cfg.maxLineBytes)

	ch := outbound.New(out)
	if err := n.handshake(sc, ch); err != nil {
		return err
	}
	logger := n.logger.With(zap.String("node", ch.Identity().NodeID))

	g, gctx := errgroup.WithContext(ctx)
	pctx, stopProducers := context.WithCancel(gctx)
	defer stopProducers()

	q := NewQueue(n.cfg.queueCapacity)
	inputDone := make(chan error, 1)
	go func() {
		inputDone <- n.read(gctx, logger, sc, q)
	}()

	if src, ok := n.handler.(ProducerSource); ok {
		for _, p := range src.Producers() {
			g.Go(func() error {
				return p.Run(pctx, q)
			})
		}
	}
	g.Go(func() error {
		defer stopProducers()
		return n.consume(gctx, logger, q, ch, inputDone, stopProducers)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (n *Node) handshake(sc *bufio.Scanner, ch *outbound.Channel) error {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read init: %w", err)
		}
		return ErrNoInput
	}
	env, err := message.Decode(sc.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotInit, err)
	}
	if env.Type() != message.TypeInit {
		return fmt.Errorf("%w: got %q", ErrNotInit, env.Type())
	}
	var init message.Init
	if err := env.Unmarshal(&init); err != nil {
		return fmt.Errorf("%w: %w", ErrNotInit, err)
	}
	if init.NodeID == "" {
		return fmt.Errorf("%w: empty node_id", ErrNotInit)
	}

	id := init.Identity()
	ch.Bind(id)
	telemetry.EnvelopesReceived.WithLabelValues(message.TypeInit).Inc()
	if err := ch.Reply(env, message.InitOk{}); err != nil {
		return err
	}
	n.logger.Info("node initialized",
		zap.String("node_id", id.NodeID),
		zap.Strings("peers", id.PeerIDs),
	)
	if n.cfg.onInit != nil {
		n.cfg.onInit(id)
	}
	return nil
}

// read pushes one EventMessage per decodable line, in input order.
func (n *Node) read(ctx context.Context, logger *zap.Logger, sc *bufio.Scanner, q *Queue) error {
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		env, err := message.Decode(line)
		if err != nil {
			telemetry.DecodeErrors.Inc()
			logger.Warn("discarding malformed envelope",
				zap.Error(err),
				zap.ByteString("line", clip(line, 256)),
			)
			continue
		}
		telemetry.EnvelopesReceived.WithLabelValues(env.Type()).Inc()
		if err := q.Push(ctx, Event{Kind: EventMessage, Envelope: env}); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (n *Node) consume(ctx context.Context, logger *zap.Logger, q *Queue, out Outbox, inputDone <-chan error, stopProducers context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-q.pop():
			q.popped()
			if err := n.dispatch(logger, ev, out); err != nil {
				return err
			}
		case err := <-inputDone:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			// Every input event is already queued; stop ticking and drain.
			stopProducers()
			logger.Debug("input exhausted, draining queue", zap.Int("queued", q.Len()))
			for {
				select {
				case ev := <-q.pop():
					q.popped()
					if err := n.dispatch(logger, ev, out); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (n *Node) dispatch(logger *zap.Logger, ev Event, out Outbox) error {
	var err error
	switch ev.Kind {
	case EventTick:
		err = telemetry.Instrument("tick", func() error {
			return n.handler.HandleTick(out)
		})
	case EventMessage:
		err = telemetry.Instrument("message", func() error {
			return n.handler.HandleMessage(ev.Envelope, out)
		})
	default:
		return nil
	}
	if errors.Is(err, message.ErrMalformed) {
		telemetry.DecodeErrors.Inc()
		logger.Warn("discarding malformed payload",
			zap.Error(err),
			zap.String("src", ev.Envelope.Src),
		)
		return nil
	}
	return err
}

func clip(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
