package app

import (
	"context"
	"time"
)

// Ticker invokes a handler with the measured elapsed time between firings.
// The handler receives real deltas rather than the nominal period, so a
// delayed firing does not lose simulation time.
type Ticker struct {
	period  time.Duration
	handler func(delta time.Duration)
}

// NewTicker creates a ticker; call Run to start it.
func NewTicker(period time.Duration, handler func(delta time.Duration)) *Ticker {
	return &Ticker{period: period, handler: handler}
}

// Run fires the handler every period until ctx is cancelled. An in-flight
// handler always completes before Run returns.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.handler(now.Sub(last))
			last = now
		}
	}
}
