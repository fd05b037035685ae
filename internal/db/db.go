package db

import (
	"context"
	"time"
)

// Drivers accepted in configuration.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Store is the key-value facade behind session persistence.
type Store interface {
	Pinger
	KVStore
	Close()
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}
