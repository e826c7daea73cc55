package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shareit/internal/domain"

	"github.com/rs/zerolog"
)

const failoverRetryAfter = time.Minute

// FailoverQuotaRepository uses primary while it is healthy and switches to
// fallback on the first error. Primary is retried once per failoverRetryAfter.
type FailoverQuotaRepository struct {
	primary  domain.QuotaRepository
	fallback domain.QuotaRepository
	logger   *zerolog.Logger
	now      func() time.Time

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverQuotaRepository(primary, fallback domain.QuotaRepository, logger *zerolog.Logger) *FailoverQuotaRepository {
	return &FailoverQuotaRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverQuotaRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRetry() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary quota repository recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary quota repository failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}

// Degraded reports whether requests are currently served by the fallback.
func (r *FailoverQuotaRepository) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverQuotaRepository) shouldRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Sub(r.lastCheck) > failoverRetryAfter
}

func (r *FailoverQuotaRepository) markChecked() {
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}
