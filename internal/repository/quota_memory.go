package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryQuotaRepository keeps fixed-window write counters in process memory.
type MemoryQuotaRepository struct {
	mu      sync.Mutex
	windows map[int64]*quotaWindow
	now     func() time.Time
}

type quotaWindow struct {
	count     int
	expiresAt time.Time
}

func NewMemoryQuotaRepository() *MemoryQuotaRepository {
	return &MemoryQuotaRepository{
		windows: make(map[int64]*quotaWindow),
		now:     time.Now,
	}
}

func (r *MemoryQuotaRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.windows[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &quotaWindow{expiresAt: now.Add(window)}
		r.windows[userID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
