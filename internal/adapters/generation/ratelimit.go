package generation

import (
	"context"

	"golang.org/x/time/rate"

	"resonance/pkg/errors"
)

// Limiter throttles outbound generation calls to a provider.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a rate limiter allowing requestsPerMinute calls.
// Burst is 10% of the per-minute limit, at least 1.
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	rps := float64(requestsPerMinute) / 60.0

	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the limiter allows the request or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow reports whether a request may proceed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the configured limit in requests per minute.
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}
