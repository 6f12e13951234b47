// Package store holds the mutable state shared across requests: rate-limit
// counters and cached responses. The Store interface isolates the backing
// (in-process memory for a single instance, an external key-value store for
// multi-instance deployments) from the services that use it.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrWrongKind is returned when Increment hits a key holding a value, or
// Get/Set hits a key holding a counter.
var ErrWrongKind = errors.New("store: key holds a different item kind")

// Item is a stored value or counter with its absolute expiry
type Item struct {
	Value     []byte
	Count     int64
	ExpiresAt time.Time
}

// Store is the get/set/increment abstraction over shared state
type Store interface {
	// Get returns the live item for key; expired items are evicted and reported missing
	Get(ctx context.Context, key string) (Item, bool, error)

	// Set stores value under key with an absolute expiry of now+ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Increment adds one to the counter under key. A missing or expired
	// counter starts a new window ending at now+window.
	Increment(ctx context.Context, key string, window time.Duration) (Item, error)

	// Delete removes key
	Delete(ctx context.Context, key string) error
}
