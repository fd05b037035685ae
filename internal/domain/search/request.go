package search

import (
	"fmt"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/weights"
)

// Search parameter limits.
const (
	DefaultTopK   = 12
	MaxTopK       = 200
	DefaultReTopK = 48
	MaxReTopK     = 500
	// PatchCount is the fixed number of patches compared by the reranker.
	PatchCount = 16
)

// Rerank configures the optional patch-level reranking pass.
type Rerank struct {
	Enabled bool `json:"enabled"`
	ReTopK  int  `json:"re_topk"`
}

// DefaultRerank returns reranking enabled over the default candidate pool.
func DefaultRerank() Rerank {
	return Rerank{Enabled: true, ReTopK: DefaultReTopK}
}

// Params are the raw inputs of a search request.
type Params struct {
	Reference Reference
	Weights   weights.Weights
	Filters   Filters
	Lens      latent.Lens
	Rerank    Rerank
	PlanMode  bool
	TopK      int
	SessionID string
	Endpoint  Endpoint
}

// Request is a validated search request, built fresh for every search.
type Request struct {
	ref       Reference
	weights   weights.Weights
	filters   Filters
	lens      latent.Lens
	rerank    Rerank
	planMode  bool
	topK      int
	sessionID string
	endpoint  Endpoint
}

// NewRequest validates and normalizes search parameters.
// Defaults: top_k=12, re_topk=48 when reranking, endpoint derived from the reference kind.
func NewRequest(p Params) (Request, error) {
	if p.Reference.IsZero() {
		return Request{}, domain.ErrNoReference
	}
	if err := p.Weights.Validate(); err != nil {
		return Request{}, err
	}
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if p.TopK > MaxTopK {
		p.TopK = MaxTopK
	}
	if p.Rerank.Enabled {
		if p.Rerank.ReTopK <= 0 {
			p.Rerank.ReTopK = DefaultReTopK
		}
		if p.Rerank.ReTopK > MaxReTopK {
			p.Rerank.ReTopK = MaxReTopK
		}
	}

	ep, err := endpointFor(p.Reference, p.Endpoint)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ref:       p.Reference,
		weights:   p.Weights,
		filters:   p.Filters.Normalize(),
		lens:      p.Lens,
		rerank:    p.Rerank,
		planMode:  p.PlanMode,
		topK:      p.TopK,
		sessionID: p.SessionID,
		endpoint:  ep,
	}, nil
}

func endpointFor(ref Reference, requested Endpoint) (Endpoint, error) {
	switch ref.Kind() {
	case RefURL:
		return EndpointSearchURL, nil
	case RefImageID:
		return EndpointSearchID, nil
	case RefFile:
		if requested == "" {
			requested = EndpointSearchFile
		}
		switch requested {
		case EndpointSearchFile, EndpointQueryImage, EndpointExplore:
		default:
			return "", fmt.Errorf("%w: %s is not an upload endpoint", domain.ErrInvalidRequest, requested)
		}
		if !ref.AcceptedBy(requested) {
			return "", fmt.Errorf("%w: %s does not accept %s", domain.ErrInvalidRequest, requested, ref.ContentType())
		}
		return requested, nil
	}
	return "", domain.ErrNoReference
}

// Reference returns the query anchor.
func (r *Request) Reference() Reference { return r.ref }

// Weights returns the committed weights sent with the request.
func (r *Request) Weights() weights.Weights { return r.weights }

// Filters returns the attribute filters.
func (r *Request) Filters() Filters { return r.filters }

// Lens returns the lens scoping the search (possibly empty).
func (r *Request) Lens() latent.Lens { return r.lens }

// Rerank returns the reranking configuration.
func (r *Request) Rerank() Rerank { return r.rerank }

// PlanMode reports whether the query is a floor plan.
func (r *Request) PlanMode() bool { return r.planMode }

// TopK returns the number of results requested.
func (r *Request) TopK() int { return r.topK }

// SessionID returns the client session id, if any.
func (r *Request) SessionID() string { return r.sessionID }

// Endpoint returns the upstream endpoint the request targets.
func (r *Request) Endpoint() Endpoint { return r.endpoint }
