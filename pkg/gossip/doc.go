// Package gossip implements epidemic dissemination of a grow-only value set
// with anti-entropy bookkeeping. Values are never forwarded as they arrive;
// instead, on every tick, each node sends each neighbor the values it has no
// evidence that neighbor knows, plus a small random sample of values it
// believes the neighbor already has. The sample repairs knowledge that was
// wrong, e.g. because an earlier gossip message was dropped.
//
// Neighbors come from the topology when one names this node; otherwise a
// fresh random sample of peers is drawn every tick.
//
// Typical usage:
//
//	g, _ := gossip.New(gossip.DefaultConfig(), nil, logger)
//	n := node.New(g, logger)
//	_ = n.Run(ctx, os.Stdin, os.Stdout)
package gossip
