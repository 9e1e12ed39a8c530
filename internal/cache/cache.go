// Package cache provides the time-boxed result cache in front of the
// read-only upstream operations. Entries are immutable value copies
// (JSON-encoded), expiry is checked lazily on access and there is no
// background sweep. Single-flight is not guaranteed: concurrent callers
// with the same key may both invoke the producer; last writer wins.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// Store is the byte-level storage under the typed helpers. Get reports
// a miss for absent and expired keys alike.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	CurrentSize int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	stats   Stats
	now     func() time.Time
}

// NewMemory returns the in-memory Store. Expired entries are evicted on
// the next read that finds them.
func NewMemory() Store {
	return &memoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *memoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		s.stats.Misses++
		return nil, false
	}
	s.stats.Hits++
	return e.value, true
}

func (s *memoryStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.stats.Sets++
}

func (s *memoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *memoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.CurrentSize = len(s.entries)
	return stats
}

// GetOrCompute returns the cached value under key, or invokes producer
// and caches its result for ttl. Producer errors are never cached.
func GetOrCompute[T any](s Store, key string, ttl time.Duration, producer func() (T, error)) (T, error) {
	var out T
	if raw, ok := s.Get(key); ok {
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		// Undecodable entry: drop it and recompute.
		s.Delete(key)
	}
	out, err := producer()
	if err != nil {
		return out, err
	}
	if raw, err := json.Marshal(out); err == nil {
		s.Set(key, raw, ttl)
	}
	return out, nil
}
