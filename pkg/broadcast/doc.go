// Package broadcast holds the state every dissemination strategy shares
// (the grow-only value set and the optional topology) and the Flood
// strategy, which forwards each newly seen value once to every neighbor.
//
// Flood is purely reactive: it never ticks and does not retry. A dropped
// forward is never repaired; see package gossip for a strategy that is.
package broadcast
