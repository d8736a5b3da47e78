// Package memory provides an in-process implementation of
// [cache.Store] suitable for single-run invocations and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/emendo-dev/emendo/pkg/cache"
)

// Store is an in-memory TTL cache with a hard entry cap. When the cap
// is reached the least recently accessed entry is evicted.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*cache.Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithTTL overrides the default 24h entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithMaxEntries caps the number of live entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*cache.Entry),
		ttl:        24 * time.Hour,
		maxEntries: 10000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(e) {
		delete(s.entries, key)
		return nil, nil
	}
	e.LastAccessedAt = s.now()
	e.AccessCount++
	cp := *e
	return &cp, nil
}

// Similar scans live entries for the closest original text by
// Jaro-Winkler similarity. Exact-key lookups should go through Get; this
// is the fallback for near-duplicates such as re-runs with minor edits.
func (s *Store) Similar(_ context.Context, text string, threshold float64) (*cache.Entry, error) {
	norm := cache.Normalize(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best    *cache.Entry
		bestSim float64
		stale   []string
	)
	for key, e := range s.entries {
		if s.expired(e) {
			stale = append(stale, key)
			continue
		}
		sim := matchr.JaroWinkler(norm, cache.Normalize(e.Original), true)
		if sim >= threshold && sim > bestSim {
			best, bestSim = e, sim
		}
	}
	for _, key := range stale {
		delete(s.entries, key)
	}
	if best == nil {
		return nil, nil
	}
	best.LastAccessedAt = s.now()
	best.AccessCount++
	cp := *best
	return &cp, nil
}

func (s *Store) Put(_ context.Context, e *cache.Entry) error {
	cp := *e
	if cp.Key == "" {
		cp.Key = cache.Key(cp.Original)
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	if cp.LastAccessedAt.IsZero() {
		cp.LastAccessedAt = cp.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[cp.Key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[cp.Key] = &cp
	return nil
}

func (s *Store) EvictExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error { return nil }

// Len reports the number of live and expired entries still held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) expired(e *cache.Entry) bool {
	return s.ttl > 0 && s.now().Sub(e.CreatedAt) > s.ttl
}

func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, e := range s.entries {
		if oldestKey == "" || e.LastAccessedAt.Before(oldest) {
			oldestKey, oldest = key, e.LastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
