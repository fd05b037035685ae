package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/circare/internal/db"
	"github.com/kailas-cloud/circare/internal/domain"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
)

const keyPrefix = "circare:session:"

// store is the consumer interface for session snapshots (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/navigator.Repository on a key-value store.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a session repository. Snapshots expire ttl after their last save
// (never when ttl <= 0).
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Save writes the snapshot, refreshing its TTL.
func (r *Repo) Save(ctx context.Context, s domsess.Snapshot) error {
	if err := domsess.ValidateID(s.ID); err != nil {
		return err
	}
	data, err := json.Marshal(toRow(s))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, sessionKey(s.ID), data, r.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Load reads a snapshot. Missing sessions return domain.ErrSessionNotFound.
func (r *Repo) Load(ctx context.Context, id string) (domsess.Snapshot, error) {
	if err := domsess.ValidateID(id); err != nil {
		return domsess.Snapshot{}, err
	}
	data, err := r.store.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsess.Snapshot{}, domain.ErrSessionNotFound
		}
		return domsess.Snapshot{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var row snapshotRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domsess.Snapshot{}, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return fromRow(row), nil
}

// Delete removes a snapshot.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List returns the ids of all stored sessions.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, keyPrefix))
	}
	return ids, nil
}

func sessionKey(id string) string {
	return keyPrefix + id
}
