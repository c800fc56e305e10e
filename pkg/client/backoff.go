package client

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays for pollers that lost the daemon.
// The delay grows by Factor per consecutive failure and is capped at Max;
// Jitter spreads concurrent dashboards so they do not reconnect in lockstep.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // 0.0 to 1.0
}

// DefaultBackoff returns the reconnect cadence used by the dashboard:
// 500ms base, 15s cap, doubling, 20% jitter.
func DefaultBackoff() *Backoff {
	return &Backoff{
		Base:   500 * time.Millisecond,
		Max:    15 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before retry number attempt (0-based).
func (b *Backoff) Next(attempt int) time.Duration {
	delay := float64(b.Base)
	for i := 0; i < attempt; i++ {
		delay *= b.Factor
		if delay >= float64(b.Max) {
			delay = float64(b.Max)
			break
		}
	}

	if b.Jitter > 0 {
		delay += delay * (rand.Float64()*2 - 1) * b.Jitter
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
