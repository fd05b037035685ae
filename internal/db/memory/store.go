// Package memory is an in-process db.Store for tests and single-node runs.
package memory

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/circare/internal/db"
)

var _ db.Store = (*Store)(nil)

type entry struct {
	value   []byte
	expires time.Time
}

// Store keeps values in a map. Expired keys are dropped lazily.
type Store struct {
	mu     sync.RWMutex
	data   map[string]entry
	now    func() time.Time
	closed bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]entry), now: time.Now}
}

// Ping implements db.Pinger.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close releases the data.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.live(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl (never when ttl <= 0).
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists checks if a live key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.live(key)
	return ok, nil
}

// Scan returns live keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if _, ok := s.live(k); !ok {
			continue
		}
		match, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		if match {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) live(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		return entry{}, false
	}
	return e, true
}
