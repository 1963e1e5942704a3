// Package cache holds the process-wide response cache and the in-flight
// request registry that together guarantee at most one origin fetch per
// fingerprint.
package cache

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL is how long a stored value is served without refetching.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the number of stored fingerprints.
	DefaultMaxEntries = 2048
)

// Entry is a stored value and the moment it was written.
type Entry struct {
	Value    any
	StoredAt time.Time
}

// Store maps fingerprints to values under a single TTL. Expired entries are
// treated as absent on read and overwritten by the next Set; nothing is
// evicted eagerly on expiry. Capacity is bounded by an LRU.
type Store struct {
	ttl     time.Duration
	clock   func() time.Time
	entries *lru.Cache[string, Entry]

	// mu orders Clear against generation-checked writes.
	mu         sync.Mutex
	generation uint64
}

// StoreOption mutates a Store at construction time.
type StoreOption func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore creates a Store. Non-positive ttl or maxEntries select defaults.
func NewStore(ttl time.Duration, maxEntries int, options ...StoreOption) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	s := &Store{ttl: ttl, clock: time.Now, entries: entries}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// TTL returns the store-wide time to live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the value for fingerprint if present and younger than the TTL.
func (s *Store) Get(fingerprint string) (any, bool) {
	e, ok := s.entries.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if s.clock().Sub(e.StoredAt) >= s.ttl {
		return nil, false
	}
	return e.Value, true
}

// Set stores value stamped with the current time, replacing any prior entry.
func (s *Store) Set(fingerprint string, value any) {
	s.entries.Add(fingerprint, Entry{Value: value, StoredAt: s.clock()})
}

// Generation identifies the current clear epoch. It changes on every Clear.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetIfCurrent stores value only if no Clear happened since generation was
// read. It reports whether the value was stored.
func (s *Store) SetIfCurrent(generation uint64, fingerprint string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.Set(fingerprint, value)
	return true
}

// Clear drops every entry and starts a new generation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.entries.Purge()
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Fingerprint derives the cache and dedup key for an operation and its
// ordered parameters. Each parameter is escaped so that distinct parameter
// lists never collide.
func Fingerprint(op string, params ...any) string {
	var sb strings.Builder
	sb.WriteString(op)
	for _, p := range params {
		sb.WriteByte(':')
		sb.WriteString(url.QueryEscape(fmt.Sprint(p)))
	}
	return sb.String()
}
