package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKey(t *testing.T) {
	base := providers.AIRequest{Prompt: "p", SystemPrompt: "s", TaskType: providers.TaskSummarization}

	assert.Equal(t, Key(base), Key(base), "deterministic")

	tests := []struct {
		name   string
		mutate func(r *providers.AIRequest)
	}{
		{"prompt", func(r *providers.AIRequest) { r.Prompt = "q" }},
		{"system prompt", func(r *providers.AIRequest) { r.SystemPrompt = "t" }},
		{"task type", func(r *providers.AIRequest) { r.TaskType = providers.TaskVision }},
		{"attachment", func(r *providers.AIRequest) {
			r.Documents = []providers.Document{{MimeType: "application/pdf", Data: "JVBE"}}
		}},
		{"field boundary", func(r *providers.AIRequest) { r.Prompt = "ps"; r.SystemPrompt = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			assert.NotEqual(t, Key(base), Key(r))
		})
	}

	other := base
	other.UserID = "someone-else"
	other.MaxTokens = 99
	assert.Equal(t, Key(base), Key(other), "non-semantic fields do not affect the key")
}

func TestResponseCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(store.NewMemoryStore(100), time.Hour, zap.NewNop())
	req := providers.AIRequest{Prompt: "summarize", TaskType: providers.TaskSummarization}

	_, ok := c.Get(ctx, req)
	assert.False(t, ok)

	c.Set(ctx, req, providers.AIResponse{Success: true, Content: "summary", Provider: "groq", Usage: providers.Usage{TotalTokens: 12}})

	resp, ok := c.Get(ctx, req)
	require.True(t, ok)
	assert.True(t, resp.Cached)
	assert.Equal(t, "summary", resp.Content)
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestResponseCache_NeverCachesFailures(t *testing.T) {
	ctx := context.Background()
	c := NewResponseCache(store.NewMemoryStore(100), time.Hour, zap.NewNop())
	req := providers.AIRequest{Prompt: "x"}

	c.Set(ctx, req, providers.AIResponse{Success: false, Error: "HTTP 500"})

	_, ok := c.Get(ctx, req)
	assert.False(t, ok)
}

func TestResponseCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	c := NewResponseCache(store.NewMemoryStore(100, store.WithClock(clk.Now)), 10*time.Minute, zap.NewNop())
	req := providers.AIRequest{Prompt: "x"}

	c.Set(ctx, req, providers.AIResponse{Success: true, Content: "y"})

	clk.Advance(9 * time.Minute)
	_, ok := c.Get(ctx, req)
	assert.True(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Get(ctx, req)
	assert.False(t, ok)
}

func TestResponseCache_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(100)
	c := NewResponseCache(st, time.Hour, zap.NewNop())
	req := providers.AIRequest{Prompt: "x"}

	require.NoError(t, st.Set(ctx, Key(req), []byte("{not json"), time.Hour))

	_, ok := c.Get(ctx, req)
	assert.False(t, ok)
	_, present, _ := st.Get(ctx, Key(req))
	assert.False(t, present, "corrupt entry removed")
}

func TestNewResponseCache_DefaultTTL(t *testing.T) {
	c := NewResponseCache(store.NewMemoryStore(1), 0, zap.NewNop())
	assert.Equal(t, DefaultTTL, c.TTL())
}
