package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawtrip/backend/internal/models"
)

type countingRepo struct {
	calls     atomic.Int32
	lastLimit atomic.Int32
	err       error
}

func (r *countingRepo) Upsert(context.Context, []models.Place) (int, error) { return 0, nil }
func (r *countingRepo) Count(context.Context) (int64, error)                { return 0, nil }
func (r *countingRepo) Close(context.Context) error                         { return nil }

func (r *countingRepo) Top(_ context.Context, limit int) ([]models.Place, error) {
	r.calls.Add(1)
	r.lastLimit.Store(int32(limit))
	if r.err != nil {
		return nil, r.err
	}
	return []models.Place{{ID: "agoda:1", Title: "Hotel"}}, nil
}

func TestTrendingCachesPerLimit(t *testing.T) {
	repo := &countingRepo{}
	svc := NewTrendingService(repo, 8, time.Hour)
	ctx := context.Background()

	for range 3 {
		places, err := svc.Top(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, places, 1)
	}
	assert.Equal(t, int32(1), repo.calls.Load())

	_, err := svc.Top(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())

	svc.Invalidate()
	_, err = svc.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(3), repo.calls.Load())
}

func TestTrendingClampsLimit(t *testing.T) {
	repo := &countingRepo{}
	svc := NewTrendingService(repo, 8, time.Hour)

	_, err := svc.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(defaultTrendingLimit), repo.lastLimit.Load())

	_, err = svc.Top(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int32(maxTrendingLimit), repo.lastLimit.Load())
}

func TestTrendingErrorsAreNotCached(t *testing.T) {
	repo := &countingRepo{err: errors.New("db locked")}
	svc := NewTrendingService(repo, 8, time.Hour)

	_, err := svc.Top(context.Background(), 10)
	require.Error(t, err)
	_, err = svc.Top(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
}

// blockingRepo holds Top until release is closed and fails if its context was cancelled
type blockingRepo struct {
	countingRepo
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Top(ctx context.Context, limit int) ([]models.Place, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.countingRepo.Top(ctx, limit)
}

func TestTrendingSharedLoadSurvivesCancelledCaller(t *testing.T) {
	repo := &blockingRepo{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewTrendingService(repo, 8, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Top(ctx, 10)
		firstErr <- err
	}()
	<-repo.started

	type result struct {
		places []models.Place
		err    error
	}
	second := make(chan result, 1)
	go func() {
		places, err := svc.Top(context.Background(), 10)
		second <- result{places, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	close(repo.release)

	got := <-second
	require.NoError(t, got.err)
	assert.Len(t, got.places, 1)
	assert.NoError(t, <-firstErr)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestTrendingCacheControl(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{10 * time.Minute, "public, s-maxage=3600, stale-while-revalidate=21600"},
		{2 * time.Hour, "public, s-maxage=7200, stale-while-revalidate=21600"},
		{24 * time.Hour, "public, s-maxage=21600, stale-while-revalidate=21600"},
	}
	for _, tt := range tests {
		t.Run(tt.ttl.String(), func(t *testing.T) {
			svc := NewTrendingService(&countingRepo{}, 8, tt.ttl)
			assert.Equal(t, tt.want, svc.CacheControl())
		})
	}
}
