package redis

import (
	"context"
	"testing"
	"time"

	"jobboard-bot/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := New(mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, cache.Set(ctx, "k", payload{Name: "v"}, time.Minute))

	var got payload
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, "v", got.Name)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, cache.Delete(ctx, "k"))
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestIncrementUserRateLimit(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	for i := int64(1); i <= 3; i++ {
		n, err := cache.IncrementUserRateLimit(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, RateLimitWindowTTL, mr.TTL(RateLimitKey(42)))

	mr.FastForward(RateLimitWindowTTL + time.Second)

	n, err := cache.IncrementUserRateLimit(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	store := NewSessionStore(cache, 10*time.Minute)

	missing, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	salary := 100000
	session := &models.Session{
		UserID: 7,
		Flow:   models.FlowCreatingJob,
		Step:   models.StepSalary,
		Job: &models.JobPosting{
			Title:     "Go developer",
			SalaryMin: &salary,
		},
		UpdatedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, session))
	assert.Equal(t, 10*time.Minute, mr.TTL(SessionKey(7)))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.FlowCreatingJob, got.Flow)
	assert.Equal(t, models.StepSalary, got.Step)
	require.NotNil(t, got.Job)
	assert.Equal(t, "Go developer", got.Job.Title)
	assert.Equal(t, 100000, *got.Job.SalaryMin)
	assert.True(t, session.UpdatedAt.Equal(got.UpdatedAt))

	require.NoError(t, store.Delete(ctx, 7))
	got, err = store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	store := NewSessionStore(cache, 0)

	require.NoError(t, store.Put(ctx, &models.Session{UserID: 1, Flow: models.FlowSearching, Step: models.StepQuery}))
	mr.FastForward(SessionTTL + time.Second)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(addr, "", 0, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrDataAccess)
}
