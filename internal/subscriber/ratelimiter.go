package subscriber

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the token bucket gating outbound Subscribe
// requests, so a burst of local subscribe calls (e.g. on reconnect,
// resubscribing everything at once) doesn't flood the shard.
type RateLimitConfig struct {
	Rate  float64 // subscribes per second
	Burst int
}

// RateLimiterSink wraps a token-bucket limiter behind the narrow interface
// the subscriber actually needs: try once, or block until a token is free.
type RateLimiterSink struct {
	limiter *rate.Limiter
}

// NewRateLimiterSink builds a sink from RateLimitConfig. A non-positive
// Rate disables limiting (every call is allowed immediately).
func NewRateLimiterSink(cfg RateLimitConfig) *RateLimiterSink {
	if cfg.Rate <= 0 {
		return &RateLimiterSink{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiterSink{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), burst)}
}

// Allow reports whether a token is available right now, consuming it if so.
func (s *RateLimiterSink) Allow() bool { return s.limiter.Allow() }

// Wait blocks until a token is available or ctx is done.
func (s *RateLimiterSink) Wait(ctx context.Context) error { return s.limiter.Wait(ctx) }
