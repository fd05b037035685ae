package navigator

import (
	"context"
	"sync"

	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/usecase/lens"
)

// CachedPoints shares one latent point fetch between all sessions.
// A failed fetch is not cached, so the next session retries.
type CachedPoints struct {
	src lens.PointSource

	mu     sync.Mutex
	points []latent.Point
	loaded bool
}

// NewCachedPoints wraps src.
func NewCachedPoints(src lens.PointSource) *CachedPoints {
	return &CachedPoints{src: src}
}

// LatentPoints implements lens.PointSource.
func (c *CachedPoints) LatentPoints(ctx context.Context) ([]latent.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.points, nil
	}
	pts, err := c.src.LatentPoints(ctx)
	if err != nil {
		return nil, err
	}
	c.points = pts
	c.loaded = true
	return pts, nil
}

// Invalidate forces the next call to refetch.
func (c *CachedPoints) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = nil
	c.loaded = false
}
