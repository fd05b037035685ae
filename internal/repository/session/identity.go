package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/circare/internal/db"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
)

// kv is the consumer interface for the identity key.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Identity is the persistent per-client session id, kept under a fixed key.
type Identity struct {
	store kv
	newID func() string
}

// NewIdentity creates an Identity backed by s.
func NewIdentity(s kv) *Identity {
	return &Identity{store: s, newID: uuid.NewString}
}

// ID returns the stored session id, generating and storing a UUID on first use.
func (i *Identity) ID(ctx context.Context) (string, error) {
	data, err := i.store.Get(ctx, domsess.IdentityKey)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(data)); domsess.ValidateID(id) == nil {
			return id, nil
		}
	case !errors.Is(err, db.ErrKeyNotFound):
		return "", fmt.Errorf("read session id: %w", err)
	}
	return i.Rotate(ctx)
}

// Rotate replaces the stored id with a fresh UUID.
func (i *Identity) Rotate(ctx context.Context) (string, error) {
	id := i.newID()
	if err := i.store.Set(ctx, domsess.IdentityKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store session id: %w", err)
	}
	return id, nil
}
