// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"time"
)

// Pacer enforces fixed delays between sends so the relay stays under the
// provider's assumed throughput ceiling. This is a static policy on
// purpose: the run is strictly sequential, so fixed sleeps bound the
// request rate without an adaptive limiter.
type Pacer struct {
	// MessageDelay is waited after each relayed message.
	MessageDelay time.Duration
	// SourceDelay is waited between source conversations during backfill.
	SourceDelay time.Duration
}

// NewPacer returns a pacer with the given delays, substituting defaults
// for non-positive values.
func NewPacer(messageDelay, sourceDelay time.Duration) Pacer {
	if messageDelay <= 0 {
		messageDelay = DefaultMessageDelay
	}
	if sourceDelay <= 0 {
		sourceDelay = DefaultSourceDelay
	}
	return Pacer{MessageDelay: messageDelay, SourceDelay: sourceDelay}
}

// AfterMessage waits the per-message delay. Returns early with ctx.Err()
// on cancellation.
func (p Pacer) AfterMessage(ctx context.Context) error {
	return sleep(ctx, p.MessageDelay)
}

// BetweenSources waits the inter-source delay. Returns early with
// ctx.Err() on cancellation.
func (p Pacer) BetweenSources(ctx context.Context) error {
	return sleep(ctx, p.SourceDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
