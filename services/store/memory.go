package store

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// memoryEntry is a single entry with absolute expiry
type memoryEntry struct {
	key       string
	value     []byte
	count     int64
	counter   bool
	expiresAt time.Time
	element   *list.Element // LRU position; nil for counters
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (e *memoryEntry) item() Item {
	return Item{Value: e.value, Count: e.count, ExpiresAt: e.expiresAt}
}

// MemoryStore is an in-process LRU store with absolute expiry. The size
// bound applies to values only: counters leave on expiry, never by
// eviction, so a burst of cached responses cannot reset a quota window.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	lruList *list.List
	maxSize int
	now     func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock injects the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a store holding at most maxSize values (0 = unbounded)
func NewMemoryStore(maxSize int, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists || entry.isExpired(s.now()) {
		s.misses++
		if exists {
			s.removeEntry(key)
		}
		return Item{}, false, nil
	}

	s.touch(entry)
	s.hits++
	return entry.item(), true, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	if entry, exists := s.entries[key]; exists {
		if entry.counter {
			if !entry.isExpired(s.now()) {
				return ErrWrongKind
			}
			s.removeEntry(key)
		} else {
			entry.value = value
			entry.expiresAt = expiresAt
			s.touch(entry)
			return nil
		}
	}

	s.insert(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	return nil
}

// Increment implements Store
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.entries[key]
	if exists && !entry.isExpired(now) {
		if !entry.counter {
			return Item{}, ErrWrongKind
		}
		entry.count++
		return entry.item(), nil
	}
	if exists {
		s.removeEntry(key)
	}

	var expiresAt time.Time
	if window > 0 {
		expiresAt = now.Add(window)
	}
	entry = &memoryEntry{key: key, count: 1, counter: true, expiresAt: expiresAt}
	s.insert(entry)
	return entry.item(), nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEntry(key)
	return nil
}

// Clear removes all entries
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	s.lruList.Init()
}

// Stats represents store statistics
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns store statistics
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hitRate float64
	if total := s.hits + s.misses; total > 0 {
		hitRate = float64(s.hits) / float64(total)
	}
	return Stats{
		Size:      len(s.entries),
		MaxSize:   s.maxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		HitRate:   hitRate,
	}
}

// insert adds a new entry. A value evicts the LRU value when the store is
// full; counters are not tracked by the LRU list (lock held).
func (s *MemoryStore) insert(entry *memoryEntry) {
	if !entry.counter {
		if s.maxSize > 0 && s.lruList.Len() >= s.maxSize {
			s.evictLRU()
		}
		entry.element = s.lruList.PushFront(entry.key)
	}
	s.entries[entry.key] = entry
}

// touch marks a value as recently used (lock held)
func (s *MemoryStore) touch(entry *memoryEntry) {
	if entry.element != nil {
		s.lruList.MoveToFront(entry.element)
	}
}

// removeEntry removes an entry (lock held)
func (s *MemoryStore) removeEntry(key string) {
	if entry, exists := s.entries[key]; exists {
		if entry.element != nil {
			s.lruList.Remove(entry.element)
		}
		delete(s.entries, key)
	}
}

// evictLRU evicts the least recently used entry (lock held)
func (s *MemoryStore) evictLRU() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, key)
	s.evictions++
}

// CleanupExpired removes all expired entries and returns how many were dropped.
// Lookups already evict lazily; this only reclaims memory held by idle keys.
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := make([]string, 0)
	for key, entry := range s.entries {
		if entry.isExpired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		s.removeEntry(key)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired entries until stopCh closes
func (s *MemoryStore) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
