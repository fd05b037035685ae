// Package session describes the persisted state of one navigator session.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
)

// IdentityKey is the local-storage key of the per-browser session id.
const IdentityKey = "arch-circare.session_id"

// Snapshot is everything needed to rebuild a session after a restart.
// Uploaded bytes are never persisted; a restored session has no file reference.
type Snapshot struct {
	ID         string
	Query      string
	Filters    search.Filters
	Rerank     search.Rerank
	PlanMode   bool
	TopK       int
	Lens       latent.Lens
	Project    string
	RefURL     string
	RefImageID string
	QueryID    string
	Votes      domfb.Votes
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateID checks a session id supplied by a client.
func ValidateID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidRequest)
	}
	if len(id) > 128 || strings.ContainsAny(id, " \t\r\n*?[]") {
		return fmt.Errorf("%w: malformed session id", domain.ErrInvalidRequest)
	}
	return nil
}
