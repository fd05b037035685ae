package navigator

import (
	"context"
	"time"

	"github.com/kailas-cloud/circare/internal/domain/search"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
)

// Searcher runs a search against the external API.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Repository persists session snapshots.
type Repository interface {
	Save(ctx context.Context, s domsess.Snapshot) error
	Load(ctx context.Context, id string) (domsess.Snapshot, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// Metrics records navigator activity.
type Metrics interface {
	RecordSearch(endpoint, outcome string, d time.Duration)
	RecordLensChange(source string)
	RecordFeedback(outcome string)
}
