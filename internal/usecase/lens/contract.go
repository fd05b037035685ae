package lens

import (
	"context"

	"github.com/kailas-cloud/circare/internal/domain/latent"
)

// PointSource loads the 2-D latent projection of the corpus.
type PointSource interface {
	LatentPoints(ctx context.Context) ([]latent.Point, error)
}

// ProjectImages lists the image ids of one project.
type ProjectImages interface {
	ProjectImageIDs(ctx context.Context, projectID string) ([]string, error)
}

// Listener is notified on every lens replacement or clear.
type Listener func(latent.Lens)
