// Package node is the runtime a Handler runs in.
//
// Run reads one envelope per input line and merges those with events from
// the handler's producers (usually a Ticker) into a single bounded Queue.
// One consumer goroutine drains the queue, so handler state is only ever
// touched from that goroutine. Input blocks when the queue is full; ticks
// are dropped instead.
package node
