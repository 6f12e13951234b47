// Package cache is the TTL response cache in front of the orchestrator.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/store"
)

const (
	// DefaultTTL applies when no TTL is configured
	DefaultTTL = time.Hour

	keyPrefix = "cache:"
)

// ResponseCache stores successful responses keyed by a hash of the request
type ResponseCache struct {
	store  store.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResponseCache creates a response cache over st
func NewResponseCache(st store.Store, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		store:  st,
		ttl:    ttl,
		logger: logger,
	}
}

// Key hashes prompt, system prompt and task type. Attachments are folded in
// so two documents sent with the same extraction prompt never collide.
func Key(req providers.AIRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(req.Prompt)
	write(req.SystemPrompt)
	write(string(req.TaskType))
	for _, img := range req.Images {
		write(img.MimeType)
		write(img.Data)
	}
	for _, doc := range req.Documents {
		write(doc.MimeType)
		write(doc.Data)
		write(doc.URL)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response with Cached set. Store failures read as a miss.
func (c *ResponseCache) Get(ctx context.Context, req providers.AIRequest) (providers.AIResponse, bool) {
	key := Key(req)
	item, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", zap.Error(err))
		return providers.AIResponse{}, false
	}
	if !ok {
		return providers.AIResponse{}, false
	}

	var resp providers.AIResponse
	if err := json.Unmarshal(item.Value, &resp); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return providers.AIResponse{}, false
	}
	resp.Cached = true
	return resp, true
}

// Set stores a successful response; failures are never cached
func (c *ResponseCache) Set(ctx context.Context, req providers.AIRequest, resp providers.AIResponse) {
	if !resp.Success {
		return
	}
	resp.Cached = false

	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("failed to encode response for cache", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, Key(req), data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// TTL returns the configured entry lifetime
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}
