package events

import (
	"context"
	"math/rand"
	"time"

	"shareit/internal/config"
)

const (
	defaultRetryDelay = time.Second
	defaultMultiplier = 2.0
)

// RetryPolicy spaces out publish attempts. Retry n waits
// InitialDelay*Multiplier^(n-1), capped at MaxDelay and then spread by
// up to Jitter of itself in either direction.
type RetryPolicy struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         float64
	AttemptTimeout time.Duration

	// random returns a value in [0, 1).
	random func() float64
}

func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	jitter := cfg.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		InitialDelay:   cfg.InitialDelay,
		MaxDelay:       cfg.MaxDelay,
		Multiplier:     cfg.BackoffFactor,
		Jitter:         jitter,
		AttemptTimeout: cfg.AttemptTimeout,
		random:         rand.Float64,
	}
}

// Attempts is the total number of publishes tried for one event.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Backoff returns the wait before retry n, counting from 1.
func (p RetryPolicy) Backoff(n int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = defaultMultiplier
	}

	d := float64(delay)
	for i := 1; i < n; i++ {
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			break
		}
		d *= multiplier
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter > 0 && p.random != nil {
		d += d * p.Jitter * (2*p.random() - 1)
	}
	return time.Duration(d)
}

// attemptContext bounds a single publish by AttemptTimeout when one is set.
func (p RetryPolicy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.AttemptTimeout)
}
