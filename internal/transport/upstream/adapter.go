// Package upstream adapts the circare SDK to the navigator's ports.
package upstream

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	circare "github.com/kailas-cloud/circare/pkg/sdk"
)

// api is the slice of the SDK client the adapter uses.
type api interface {
	SearchFile(ctx context.Context, endpoint string, f circare.File, p circare.SearchParams) (*circare.SearchResponse, error)
	SearchURL(ctx context.Context, imageURL string, p circare.SearchParams) (*circare.SearchResponse, error)
	SearchByID(ctx context.Context, imageID string, p circare.SearchParams) (*circare.SearchResponse, error)
	ProjectImages(ctx context.Context, projectID string) (*circare.ProjectImages, error)
	Feedback(ctx context.Context, req circare.FeedbackRequest) (*circare.FeedbackResponse, error)
	LatentPoints(ctx context.Context) ([]circare.LatentPoint, error)
	Health(ctx context.Context) (circare.HealthStatus, error)
}

// Adapter implements navigator.Searcher, feedback.Submitter,
// lens.PointSource and lens.ProjectImages on top of the search API.
type Adapter struct {
	api    api
	logger *zap.Logger
}

// New creates an adapter. A nil logger discards output.
func New(c api, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{api: c, logger: logger}
}

// Search sends req to the endpoint it targets.
func (a *Adapter) Search(ctx context.Context, req search.Request) (search.Response, error) {
	p := searchParams(&req)
	ref := req.Reference()

	var (
		res *circare.SearchResponse
		err error
	)
	switch ep := req.Endpoint(); ep {
	case search.EndpointSearchURL:
		res, err = a.api.SearchURL(ctx, ref.URL(), p)
	case search.EndpointSearchID:
		res, err = a.api.SearchByID(ctx, ref.ImageID(), p)
	case search.EndpointSearchFile, search.EndpointQueryImage, search.EndpointExplore:
		f := circare.File{Name: ref.Filename(), ContentType: ref.ContentType(), Data: ref.Data()}
		res, err = a.api.SearchFile(ctx, string(ep), f, p)
	default:
		return search.Response{}, fmt.Errorf("%w: unsupported endpoint %q", domain.ErrInvalidRequest, ep)
	}
	if err != nil {
		return search.Response{}, mapError("search", err)
	}

	items := make([]search.Item, len(res.Results))
	for i, r := range res.Results {
		items[i] = search.Item{
			Rank:      r.Rank,
			Distance:  r.Distance,
			FaissID:   r.FaissID,
			ImageID:   r.ImageID,
			ProjectID: r.ProjectID,
			ThumbURL:  r.ThumbURL,
			Title:     r.Title,
			Country:   r.Country,
			Typology:  r.Typology,
		}
	}
	out, err := search.NewResponse(res.QueryID, res.LatencyMS, req.Weights(),
		toWeights(res.EffectiveWeights()), req.Filters(), items)
	if err != nil {
		return search.Response{}, err
	}
	if d := res.Debug; d != nil {
		a.logger.Debug("Search debug",
			zap.String("query_id", res.QueryID),
			zap.String("rerank", d.Rerank),
			zap.Int("moved", d.Moved),
			zap.Int("rerank_latency_ms", d.RerankLatencyMS),
		)
	}
	return out, nil
}

// SubmitFeedback posts one batch of votes.
func (a *Adapter) SubmitFeedback(ctx context.Context, s domfb.Submission) (domfb.Result, error) {
	before := fromWeights(s.WeightsBefore)
	res, err := a.api.Feedback(ctx, circare.FeedbackRequest{
		SessionID:     s.SessionID,
		QueryID:       s.QueryID,
		Liked:         s.Liked,
		Disliked:      s.Disliked,
		WeightsBefore: &before,
	})
	if err != nil {
		return domfb.Result{}, mapError("feedback", err)
	}
	if !res.OK {
		return domfb.Result{}, fmt.Errorf("feedback: %w: ok=false", domain.ErrUpstream)
	}
	return domfb.Result{
		SessionID:    res.SessionID,
		QueryID:      res.QueryID,
		WeightsAfter: toWeights(res.WeightsAfter),
		Nudges:       res.Nudges,
	}, nil
}

// LatentPoints fetches the corpus projection. Rows are passed through
// unvalidated; the lens drops bad ones.
func (a *Adapter) LatentPoints(ctx context.Context) ([]latent.Point, error) {
	rows, err := a.api.LatentPoints(ctx)
	if err != nil {
		return nil, mapError("latent points", err)
	}
	out := make([]latent.Point, len(rows))
	for i, r := range rows {
		out[i] = latent.Point{
			ImageID:   r.ImageID,
			ProjectID: r.ProjectID,
			X:         r.X,
			Y:         r.Y,
			Typology:  r.Typology,
			Title:     r.Title,
			Country:   r.Country,
		}
	}
	return out, nil
}

// ProjectImageIDs lists the image ids of a project.
func (a *Adapter) ProjectImageIDs(ctx context.Context, projectID string) ([]string, error) {
	res, err := a.api.ProjectImages(ctx, projectID)
	if err != nil {
		return nil, mapError("project images", err)
	}
	ids := make([]string, len(res.Images))
	for i, img := range res.Images {
		ids[i] = img.ImageID
	}
	return ids, nil
}

// Ping reports whether the search API answers its health probe.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.api.Health(ctx); err != nil {
		return mapError("health", err)
	}
	return nil
}

func searchParams(req *search.Request) circare.SearchParams {
	w := fromWeights(req.Weights())
	f := req.Filters()
	rr := req.Rerank()
	p := circare.SearchParams{
		TopK:    req.TopK(),
		Weights: &w,
		Filters: circare.Filters{
			Typology:    f.Typology,
			ClimateBin:  f.ClimateBin,
			MassingType: f.MassingType,
		},
		Strict:    f.Strict,
		Rerank:    rr.Enabled,
		ReTopK:    rr.ReTopK,
		PlanMode:  req.PlanMode(),
		SessionID: req.SessionID(),
	}
	if l := req.Lens(); !l.IsEmpty() {
		p.LensIDs = l.Sorted()
		if pid := l.ProjectID(); pid != "" {
			p.LensProjects = []string{pid}
		}
	}
	return p
}

func fromWeights(w weights.Weights) circare.Weights {
	return circare.Weights{Visual: w.Visual, Spatial: w.Spatial, Attr: w.Attr}
}

func toWeights(w *circare.Weights) *weights.Weights {
	if w == nil {
		return nil
	}
	return &weights.Weights{Visual: w.Visual, Spatial: w.Spatial, Attr: w.Attr}
}

// mapError turns SDK failures into domain errors. Context errors pass
// through so callers can tell a cancel from a failure.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var apiErr *circare.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, domain.NewUpstreamError(apiErr.Status, apiErr.Detail))
	}
	return fmt.Errorf("%s: %w", op, err)
}
