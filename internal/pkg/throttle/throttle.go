// Package throttle provides pacing policies for loops that call
// rate-limited upstream APIs. The pacing strategy is injected so tests
// can disable it without code changes.
package throttle

import (
	"context"
	"time"
)

type Pacer interface {
	// Pace blocks for the policy's delay or until ctx is done.
	Pace(ctx context.Context) error
}

type fixedDelay struct {
	d time.Duration
}

// FixedDelay paces with a constant delay between iterations.
func FixedDelay(d time.Duration) Pacer {
	return &fixedDelay{d: d}
}

func (p *fixedDelay) Pace(ctx context.Context) error {
	if p.d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type none struct{}

// None never delays. Intended for tests.
func None() Pacer {
	return none{}
}

func (none) Pace(ctx context.Context) error { return ctx.Err() }
