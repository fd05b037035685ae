// Package file is a db.Store persisted as one JSON document on local disk,
// the CLI's equivalent of browser local storage. Values must be UTF-8 text.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/circare/internal/db"
)

var _ db.Store = (*Store)(nil)

type record struct {
	Value   string     `json:"value"`
	Expires *time.Time `json:"expires,omitempty"`
}

// Store keeps all keys in memory and rewrites the file on every change.
type Store struct {
	mu     sync.Mutex
	path   string
	data   map[string]record
	now    func() time.Time
	closed bool
}

// Open loads path, creating parent directories. A missing file starts empty.
func Open(p string) (*Store, error) {
	if p == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}
	s := &Store{path: p, data: make(map[string]record), now: time.Now}

	raw, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, &db.Error{Op: db.OpLoad, Err: err}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, &db.Error{Op: db.OpLoad, Err: fmt.Errorf("%s: %w", p, err)}
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// Close marks the store closed. Data is already on disk.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.live(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(r.Value), nil
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
	r := record{Value: string(value)}
	if ttl > 0 {
		exp := s.now().Add(ttl).UTC()
		r.Expires = &exp
	}
	prev, had := s.data[key]
	s.data[key] = r
	if err := s.flushLocked(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpDel, Err: db.ErrClosed}
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	if err := s.flushLocked(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a live key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

// Scan returns live keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *Store) live(key string) (record, bool) {
	r, ok := s.data[key]
	if !ok {
		return record{}, false
	}
	if r.Expires != nil && !s.now().Before(*r.Expires) {
		return record{}, false
	}
	return r, true
}

// flushLocked writes a temp file next to the target and renames it into place.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".circare-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
