package search

import (
	"fmt"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

// Item is one ranked search hit.
type Item struct {
	Rank      int     `json:"rank"`
	Distance  float64 `json:"distance"`
	FaissID   int     `json:"faiss_id"`
	ImageID   string  `json:"image_id"`
	ProjectID string  `json:"project_id"`
	ThumbURL  string  `json:"thumb_url,omitempty"`
	Title     string  `json:"title,omitempty"`
	Country   string  `json:"country,omitempty"`
	Typology  string  `json:"typology,omitempty"`
}

// Response is a validated search response.
type Response struct {
	QueryID   string           `json:"query_id"`
	LatencyMS int              `json:"latency_ms"`
	Weights   weights.Weights  `json:"weights"`
	Effective *weights.Weights `json:"weights_effective,omitempty"`
	Filters   Filters          `json:"filters"`
	Items     []Item           `json:"results"`
}

// NewResponse checks the invariants the navigator relies on: a query id, and
// unique image ids among the hits.
func NewResponse(
	queryID string, latencyMS int, sent weights.Weights, effective *weights.Weights,
	filters Filters, items []Item,
) (Response, error) {
	if queryID == "" {
		return Response{}, fmt.Errorf("%w: missing query_id", domain.ErrInvalidResponse)
	}
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ImageID == "" {
			return Response{}, fmt.Errorf("%w: result %d has no image_id", domain.ErrInvalidResponse, i)
		}
		if _, dup := seen[it.ImageID]; dup {
			return Response{}, fmt.Errorf("%w: duplicate image_id %q", domain.ErrInvalidResponse, it.ImageID)
		}
		seen[it.ImageID] = struct{}{}
	}
	if effective != nil {
		// the server reports float32 values; renormalise so the sum holds exactly
		n := weights.Normalize(effective.Visual, effective.Spatial, effective.Attr)
		effective = &n
	}
	if items == nil {
		items = []Item{}
	}
	return Response{
		QueryID:   queryID,
		LatencyMS: latencyMS,
		Weights:   sent,
		Effective: effective,
		Filters:   filters,
		Items:     items,
	}, nil
}

// ImageIDs returns the ids of the hits in rank order.
func (r Response) ImageIDs() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.ImageID
	}
	return out
}

// Has reports whether the response contains the image.
func (r Response) Has(imageID string) bool {
	for _, it := range r.Items {
		if it.ImageID == imageID {
			return true
		}
	}
	return false
}
