package session

import (
	"context"
	"time"
)

// mockStore implements the consumer interfaces for tests.
type mockStore struct {
	getFn        func(ctx context.Context, key string) ([]byte, error)
	setFn        func(ctx context.Context, key string, value []byte) error
	setWithTTLFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn        func(ctx context.Context, key string) error
	scanFn       func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setWithTTLFn != nil {
		return m.setWithTTLFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}
