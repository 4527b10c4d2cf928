package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrSyncFailed is returned by a Remote when a push did not go through.
var ErrSyncFailed = errors.New("sync failed")

// Remote receives a sync pass. A pass is all or nothing: an error means
// none of types was accepted.
type Remote interface {
	Push(ctx context.Context, types []EntityType) error
}

// SimulatedRemote stands in for a server: it waits Latency and then
// succeeds with probability SuccessRate.
type SimulatedRemote struct {
	Latency     time.Duration
	SuccessRate float64

	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// NewSimulatedRemote returns a remote with the given latency and success
// probability.
func NewSimulatedRemote(latency time.Duration, successRate float64) *SimulatedRemote {
	return &SimulatedRemote{Latency: latency, SuccessRate: successRate}
}

// Push implements Remote. Cancelling ctx during the latency fails the push.
func (r *SimulatedRemote) Push(ctx context.Context, types []EntityType) error {
	if r.Latency > 0 {
		timer := time.NewTimer(r.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrSyncFailed, ctx.Err())
		}
	}

	roll := rand.Float64
	if r.Rand != nil {
		roll = r.Rand
	}
	if roll() >= r.SuccessRate {
		return fmt.Errorf("%w: remote rejected %d type(s)", ErrSyncFailed, len(types))
	}
	return nil
}
