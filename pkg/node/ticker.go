package node

import (
	"context"
	"fmt"
	"time"

	"github.com/ryandielhenn/broadcaster/internal/telemetry"
)

// Ticker emits EventTick every Interval. A tick that finds the queue full
// is dropped; the next one carries the same meaning.
type Ticker struct {
	Interval time.Duration
}

func (t Ticker) Run(ctx context.Context, q *Queue) error {
	if t.Interval <= 0 {
		return fmt.Errorf("ticker: interval must be positive, got %s", t.Interval)
	}
	tk := time.NewTicker(t.Interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			if !q.TryPush(Event{Kind: EventTick}) {
				telemetry.TicksDropped.Inc()
			}
		}
	}
}
