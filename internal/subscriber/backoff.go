package subscriber

import (
	"math/rand"
	"time"
)

// BackoffConfig controls the reconnect backoff schedule.
type BackoffConfig struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64 // fraction of the computed delay to randomize, e.g. 0.2
}

// backoff computes exponential reconnect delays with full jitter, capped so
// a long-lived connection outage doesn't grow the retry interval without
// bound.
type backoff struct {
	cfg     BackoffConfig
	attempt int
	rng     *rand.Rand
}

func newBackoff(cfg BackoffConfig, seed int64) *backoff {
	if cfg.Base <= 0 {
		cfg.Base = 100 * time.Millisecond
	}
	if cfg.Cap <= 0 {
		cfg.Cap = 30 * time.Second
	}
	return &backoff{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Next returns the delay before the next reconnect attempt and advances the
// internal attempt counter.
func (b *backoff) Next() time.Duration {
	d := b.cfg.Base << uint(min(b.attempt, 32))
	if d <= 0 || d > b.cfg.Cap {
		d = b.cfg.Cap
	}
	b.attempt++
	if b.cfg.Jitter > 0 {
		j := float64(d) * b.cfg.Jitter
		d = time.Duration(float64(d) - j + b.rng.Float64()*2*j)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Reset zeroes the attempt counter after a successful reconnect.
func (b *backoff) Reset() { b.attempt = 0 }
