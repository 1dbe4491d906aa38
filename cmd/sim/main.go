package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/broadcaster/internal/config"
	"github.com/ryandielhenn/broadcaster/pkg/cluster"
	"github.com/ryandielhenn/broadcaster/pkg/node"
)

func main() {
	nodes := flag.Int("nodes", 5, "number of nodes")
	strategy := flag.String("strategy", "gossip", "flood or gossip")
	topology := flag.String("topology", "grid", "line, full or grid")
	values := flag.Int("values", 100, "values to broadcast")
	drop := flag.Float64("drop", 0, "probability that a node-to-node envelope is lost")
	tick := flag.Duration("tick", 50*time.Millisecond, "gossip tick interval")
	wait := flag.Duration("wait", 30*time.Second, "give up if not converged after this long")
	verbose := flag.Bool("v", false, "log node diagnostics to stderr")
	flag.Parse()

	if err := run(*nodes, config.Strategy(*strategy), *topology, *values, *drop, *tick, *wait, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "sim:", err)
		os.Exit(1)
	}
}

func run(nodes int, strategy config.Strategy, topology string, values int, drop float64, tick, wait time.Duration, verbose bool) error {
	if strategy != config.StrategyFlood && strategy != config.StrategyGossip {
		return fmt.Errorf("strategy must be flood or gossip, got %q", strategy)
	}
	cfg := config.Default()
	cfg.Strategy = strategy
	cfg.Gossip.TickInterval = tick
	if err := cfg.Gossip.Validate(); err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		defer logger.Sync()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, err := cluster.Start(ctx, cluster.Config{
		Nodes:      nodes,
		NewHandler: func(string) (node.Handler, error) { return cfg.NewHandler(logger) },
		DropRate:   drop,
		Seed:       uint64(time.Now().UnixNano()),
		Logger:     logger,
		Options:    cfg.NodeOptions(),
	})
	if err != nil {
		return err
	}
	defer c.Stop()

	topo, err := cluster.BuildTopology(topology, c.IDs())
	if err != nil {
		return err
	}
	if err := c.SetTopology(ctx, topo); err != nil {
		return err
	}

	start := time.Now()
	want := make([]int64, 0, values)
	for i := range values {
		id := c.IDs()[i%nodes]
		if err := c.Broadcast(ctx, id, int64(i)); err != nil {
			return err
		}
		want = append(want, int64(i))
	}
	sent := time.Since(start)

	deadline := time.Now().Add(wait)
	converged := false
	for time.Now().Before(deadline) {
		ok, err := c.Converged(ctx, want)
		if err != nil {
			return err
		}
		if ok {
			converged = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	elapsed := time.Since(start)

	fmt.Printf("%s over %s: %d nodes, %d values, drop %.2f\n", strategy, topology, nodes, values, drop)
	fmt.Printf("broadcasts accepted in %s\n", sent)
	if converged {
		fmt.Printf("converged in %s\n", elapsed)
	} else {
		fmt.Printf("NOT converged after %s\n", elapsed)
	}
	for _, id := range c.IDs() {
		got, err := c.Read(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("  %-4s %d/%d values\n", id, len(got), values)
	}
	st := c.Stats()
	fmt.Printf("envelopes: %d delivered, %d dropped, %d overflowed\n", st.Delivered, st.Dropped, st.Overflow)

	if !converged {
		return fmt.Errorf("no convergence within %s", wait)
	}
	return nil
}
