// Package ratelimit paces scanner requests so a scan does not hammer the
// target API or trip WAF throttling, which would skew the differential
// comparison.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

type Limiter struct {
	limiter *rate.Limiter
}

type Config struct {
	// RequestsPerSecond limits sustained request rate; zero disables pacing.
	RequestsPerSecond float64

	// BurstSize allows brief bursts above the sustained rate.
	BurstSize int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0,
		BurstSize:         1,
	}
}

// NewLimiter creates a limiter; a nil return means pacing is disabled and
// callers skip the Wait entirely.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerSecond <= 0 {
		return nil
	}
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst),
	}
}

// Wait blocks until the limiter admits one request or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request would be admitted without blocking.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
