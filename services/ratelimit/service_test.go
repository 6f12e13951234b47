package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/cache"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*RateLimitService, *testClock) {
	clock := &testClock{now: time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)}
	st := store.NewMemoryStore(0, store.WithClock(clock.Now))
	return NewRateLimitService(st, zap.NewNop()), clock
}

func groqConfig(perMinute, perDay int) providers.ProviderConfig {
	return providers.ProviderConfig{
		Kind:               providers.KindGroq,
		RateLimitPerMinute: perMinute,
		RateLimitPerDay:    perDay,
		Enabled:            true,
	}
}

func TestRateLimitService_BuildKey(t *testing.T) {
	service, _ := newTestService()
	assert.Equal(t, "ratelimit:groq:minute", service.buildKey("groq", WindowMinute))
	assert.Equal(t, "ratelimit:gemini:day", service.buildKey("gemini", WindowDay))
}

func TestRateLimitWindow_Duration(t *testing.T) {
	assert.Equal(t, time.Minute, WindowMinute.Duration())
	assert.Equal(t, 24*time.Hour, WindowDay.Duration())
}

func TestRateLimitService_MinuteLimit(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	cfg := groqConfig(5, 1000)

	for i := 0; i < 5; i++ {
		require.True(t, service.IsEligible(ctx, cfg), "call %d should be eligible", i+1)
		require.NoError(t, service.RecordSuccess(ctx, cfg))
	}

	assert.False(t, service.IsEligible(ctx, cfg), "N+1th check must be ineligible within the window")

	result, err := service.CheckLimit(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, WindowMinute, result.ViolatedWindow)
	assert.Contains(t, result.ViolationReason, "5 requests per minute")

	clock.Advance(time.Minute)
	assert.True(t, service.IsEligible(ctx, cfg), "window reset reopens eligibility")
}

func TestRateLimitService_DayLimit(t *testing.T) {
	ctx := context.Background()
	service, clock := newTestService()
	cfg := groqConfig(100, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, service.RecordSuccess(ctx, cfg))
		clock.Advance(2 * time.Minute)
	}

	result, err := service.CheckLimit(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, WindowDay, result.ViolatedWindow)

	clock.Advance(24 * time.Hour)
	assert.True(t, service.IsEligible(ctx, cfg))
}

func TestRateLimitService_NoLimits(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	cfg := groqConfig(0, 0)

	for i := 0; i < 20; i++ {
		require.NoError(t, service.RecordSuccess(ctx, cfg))
	}
	result, err := service.CheckLimit(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimitService_Remaining(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	cfg := groqConfig(10, 4)

	require.NoError(t, service.RecordSuccess(ctx, cfg))
	result, err := service.CheckLimit(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, result.RequestsRemaining, "tightest window wins")
}

func TestRateLimitService_Status(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	groq := groqConfig(2, 10)
	gemini := providers.ProviderConfig{Kind: providers.KindGemini, RateLimitPerMinute: 60, RateLimitPerDay: 1500}

	require.NoError(t, service.RecordSuccess(ctx, groq))
	require.NoError(t, service.RecordSuccess(ctx, groq))

	statuses, err := service.Status(ctx, []providers.ProviderConfig{groq, gemini})
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "groq", statuses[0].Provider)
	assert.Equal(t, 2, statuses[0].RequestsThisMinute)
	assert.Equal(t, 2, statuses[0].RequestsToday)
	assert.False(t, statuses[0].Eligible)
	assert.False(t, statuses[0].MinuteResetAt.IsZero())

	assert.Equal(t, "gemini", statuses[1].Provider)
	assert.Equal(t, 0, statuses[1].RequestsThisMinute)
	assert.True(t, statuses[1].Eligible)
}

type failingStore struct{ store.Store }

func (failingStore) Get(context.Context, string) (store.Item, bool, error) {
	return store.Item{}, false, errors.New("store down")
}

func TestRateLimitService_StoreFailureFailsOpen(t *testing.T) {
	service := NewRateLimitService(failingStore{}, zap.NewNop())

	_, err := service.CheckLimit(context.Background(), groqConfig(1, 1))
	assert.Error(t, err)
	assert.True(t, service.IsEligible(context.Background(), groqConfig(1, 1)))
}

func TestRateLimitService_QuotaSurvivesCacheChurn(t *testing.T) {
	ctx := context.Background()
	shared := store.NewMemoryStore(10)
	service := NewRateLimitService(shared, zap.NewNop())
	responses := cache.NewResponseCache(shared, time.Hour, zap.NewNop())
	cfg := groqConfig(0, 2)

	require.NoError(t, service.RecordSuccess(ctx, cfg))
	require.NoError(t, service.RecordSuccess(ctx, cfg))
	require.False(t, service.IsEligible(ctx, cfg))

	for i := 0; i < 25; i++ {
		responses.Set(ctx,
			providers.AIRequest{Prompt: fmt.Sprintf("image extraction %d", i)},
			providers.AIResponse{Success: true, Content: "{}", Provider: "gemini"})
	}

	assert.False(t, service.IsEligible(ctx, cfg), "cached responses never evict quota counters")
	assert.LessOrEqual(t, shared.Stats().Size, 10+2)
}
