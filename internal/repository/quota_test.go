package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMemoryQuotaRepository(t *testing.T) {
	repo := NewMemoryQuotaRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	userID := int64(456)
	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, userID, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := repo.CheckRateLimit(ctx, userID, 2, time.Second)
	assert.False(t, allowed)

	other, _ := repo.CheckRateLimit(ctx, 789, 2, time.Second)
	assert.True(t, other, "quota is per user")

	now = now.Add(time.Second + time.Millisecond)
	allowed, _ = repo.CheckRateLimit(ctx, userID, 2, time.Second)
	assert.True(t, allowed)
}

func TestRedisQuotaRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisQuotaRepository(client)
	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	userID := int64(789)
	limit := 2
	window := time.Second

	allowed, err := repo.CheckRateLimit(ctx, userID, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, s.Exists("shareit:quota:789"))
	s.FastForward(window + time.Millisecond)

	allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisQuotaRepository_NilClient(t *testing.T) {
	repo := NewRedisQuotaRepository(nil)
	_, err := repo.CheckRateLimit(context.Background(), 1, 1, time.Second)
	assert.Error(t, err)
}

type mockQuotaRepo struct {
	mock.Mock
}

func (m *mockQuotaRepo) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverQuotaRepository(t *testing.T) {
	primary := new(mockQuotaRepo)
	fallback := new(mockQuotaRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverQuotaRepository(primary, fallback, &logger)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, int64(1), 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, 1, 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, repo.Degraded())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailsFallbackServes", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, int64(2), 5, time.Minute).Return(false, errors.New("connection refused")).Once()
		fallback.On("CheckRateLimit", ctx, int64(2), 5, time.Minute).Return(true, nil).Twice()

		allowed, err := repo.CheckRateLimit(ctx, 2, 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.Degraded())

		// primary is not retried inside the cool-down
		allowed, err = repo.CheckRateLimit(ctx, 2, 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)

		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoversAfterCoolDown", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("CheckRateLimit", ctx, int64(3), 5, time.Minute).Return(false, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, 3, 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		assert.False(t, repo.Degraded())
		primary.AssertExpectations(t)
	})
}
