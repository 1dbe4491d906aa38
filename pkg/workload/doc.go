// Package workload has the small stateless-ish handlers: echo and unique
// id generation. Neither ticks.
package workload
