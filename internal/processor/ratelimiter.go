package processor

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/complaint-engine/internal/logging"
)

// RateLimiter caps how fast the processor talks to a downstream
// dependency. It wraps golang.org/x/time/rate with a name so saturation
// shows up attributed in the logs.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
	logger  logging.Logger
}

// NewRateLimiter builds a limiter allowing rps events per second with the
// given burst. Non-positive rps falls back to DefaultIndexRPS; a
// non-positive burst falls back to rps.
func NewRateLimiter(rps, burst int, name string, log logging.Logger) *RateLimiter {
	if rps <= 0 {
		rps = DefaultIndexRPS
	}
	if burst <= 0 {
		burst = rps
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		logger:  log,
	}
}

// Wait blocks until the limiter grants an event or the context ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", r.name, err)
	}
	return nil
}

// Allow reports whether an event may proceed right now without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetLimit changes the sustained rate at runtime.
func (r *RateLimiter) SetLimit(rps int) {
	r.limiter.SetLimit(rate.Limit(rps))
	r.logger.Info("rate limit updated",
		logging.String("limiter", r.name),
		logging.Int("rps", rps),
	)
}

// SetBurst changes the burst size at runtime.
func (r *RateLimiter) SetBurst(burst int) {
	r.limiter.SetBurst(burst)
	r.logger.Info("rate burst updated",
		logging.String("limiter", r.name),
		logging.Int("burst", burst),
	)
}

// Limit returns the current sustained rate.
func (r *RateLimiter) Limit() rate.Limit {
	return r.limiter.Limit()
}
