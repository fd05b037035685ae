package circare

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Health calls GET /healthz. A reachable API that reports ok=false returns
// ErrUpstream.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	if err = c.do(ctx, http.MethodGet, endpointHealth, nil, nil, "", &hs); err != nil {
		return HealthStatus{}, err
	}
	if !hs.OK {
		return hs, errors.Join(ErrUpstream, errors.New("circare: api reports not ok"))
	}
	return hs, nil
}
