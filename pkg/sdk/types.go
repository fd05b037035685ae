package circare

import (
	"net/url"
	"strconv"
	"strings"
)

// Upload endpoints. The study phase decides which one a client should use.
const (
	EndpointSearchFile  = "/search/file"
	EndpointQueryImage  = "/upload/query-image"
	EndpointExplore     = "/upload/explore"
	endpointSearchURL   = "/search/url"
	endpointSearchID    = "/search/id"
	endpointFeedback    = "/feedback"
	endpointLatent      = "/latent/points"
	endpointHealth      = "/healthz"
	endpointProjectsFmt = "/projects/%s/images"
)

// PatchCount is the number of patches the server reranker compares.
const PatchCount = 16

// Weights is the visual/spatial/attribute blend.
type Weights struct {
	Visual  float64 `json:"visual" validate:"gte=0,lte=1"`
	Spatial float64 `json:"spatial" validate:"gte=0,lte=1"`
	Attr    float64 `json:"attr" validate:"gte=0,lte=1"`
}

// Filters restricts results by project attributes.
type Filters struct {
	Typology    string `json:"typology,omitempty"`
	ClimateBin  string `json:"climate_bin,omitempty"`
	MassingType string `json:"massing_type,omitempty"`
}

// SearchParams are the options shared by all search calls.
type SearchParams struct {
	TopK         int
	Weights      *Weights
	Filters      Filters
	Strict       bool
	Rerank       bool
	ReTopK       int
	PlanMode     bool
	LensIDs      []string
	LensProjects []string
	SessionID    string
}

// query encodes the params as the query string of the search endpoints.
func (p SearchParams) query() url.Values {
	q := url.Values{}
	if p.TopK > 0 {
		q.Set("top_k", strconv.Itoa(p.TopK))
	}
	if p.Filters.Typology != "" {
		q.Set("typology", p.Filters.Typology)
	}
	if p.Filters.ClimateBin != "" {
		q.Set("climate_bin", p.Filters.ClimateBin)
	}
	if p.Filters.MassingType != "" {
		q.Set("massing_type", p.Filters.MassingType)
	}
	if p.Weights != nil {
		q.Set("w_visual", formatFloat(p.Weights.Visual))
		q.Set("w_spatial", formatFloat(p.Weights.Spatial))
		q.Set("w_attr", formatFloat(p.Weights.Attr))
	}
	if p.Strict {
		q.Set("strict", "true")
	}
	if p.PlanMode {
		q.Set("mode", "plan")
	}
	if p.Rerank {
		q.Set("rerank", "true")
		if p.ReTopK > 0 {
			q.Set("re_topk", strconv.Itoa(p.ReTopK))
		}
		q.Set("patches", strconv.Itoa(PatchCount))
	}
	if len(p.LensIDs) > 0 {
		q.Set("lens_ids", strings.Join(p.LensIDs, ","))
	}
	if len(p.LensProjects) > 0 {
		q.Set("lens_projects", strings.Join(p.LensProjects, ","))
	}
	if p.SessionID != "" {
		q.Set("session_id", p.SessionID)
	}
	return q
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// searchByIDBody is the JSON body of POST /search/id.
type searchByIDBody struct {
	ImageID      string   `json:"image_id"`
	TopK         int      `json:"top_k,omitempty"`
	Weights      *Weights `json:"weights,omitempty"`
	Filters      Filters  `json:"filters"`
	Strict       bool     `json:"strict"`
	Mode         string   `json:"mode,omitempty"`
	LensIDs      []string `json:"lens_ids,omitempty"`
	LensProjects []string `json:"lens_projects,omitempty"`
}

// File is an uploaded reference.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is one ranked hit.
type Result struct {
	Rank      int     `json:"rank"`
	Distance  float64 `json:"distance"`
	FaissID   int     `json:"faiss_id"`
	ImageID   string  `json:"image_id" validate:"required"`
	ProjectID string  `json:"project_id"`
	ThumbURL  string  `json:"thumb_url,omitempty"`
	Title     string  `json:"title,omitempty"`
	Country   string  `json:"country,omitempty"`
	Typology  string  `json:"typology,omitempty"`
}

// SearchDebug carries ranking diagnostics.
type SearchDebug struct {
	WeightsRequested *Weights `json:"weights_requested,omitempty"`
	WeightsEffective *Weights `json:"weights_effective,omitempty"`
	Rerank           string   `json:"rerank,omitempty"`
	ReTopK           int      `json:"re_topk,omitempty"`
	Patches          int      `json:"patches,omitempty"`
	Moved            int      `json:"moved,omitempty"`
	RerankLatencyMS  int      `json:"rerank_latency_ms,omitempty"`
}

// SearchResponse is the body of every search endpoint.
type SearchResponse struct {
	QueryID          string       `json:"query_id" validate:"required"`
	LatencyMS        int          `json:"latency_ms" validate:"gte=0"`
	Weights          *Weights     `json:"weights,omitempty"`
	WeightsEffective *Weights     `json:"weights_effective,omitempty"`
	Filters          Filters      `json:"filters"`
	Results          []Result     `json:"results" validate:"dive"`
	Debug            *SearchDebug `json:"debug,omitempty"`
}

// EffectiveWeights returns the weights the server actually applied, looking
// at the top-level field first and the debug block second.
func (r *SearchResponse) EffectiveWeights() *Weights {
	if r.WeightsEffective != nil {
		return r.WeightsEffective
	}
	if r.Debug != nil {
		return r.Debug.WeightsEffective
	}
	return nil
}

// ProjectImage is one image of a project.
type ProjectImage struct {
	ImageID  string `json:"image_id" validate:"required"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ProjectImages lists a project's images.
type ProjectImages struct {
	ProjectID string         `json:"project_id" validate:"required"`
	Images    []ProjectImage `json:"images" validate:"dive"`
}

// FeedbackRequest is a batch of relevance votes.
type FeedbackRequest struct {
	SessionID     string   `json:"session_id"`
	QueryID       string   `json:"query_id"`
	Liked         []string `json:"liked"`
	Disliked      []string `json:"disliked"`
	WeightsBefore *Weights `json:"weights_before,omitempty"`
}

// FeedbackResponse carries the server-adjusted weights.
type FeedbackResponse struct {
	OK           bool              `json:"ok"`
	SessionID    string            `json:"session_id"`
	QueryID      string            `json:"query_id"`
	WeightsAfter *Weights          `json:"weights_after,omitempty"`
	Nudges       map[string]string `json:"nudges,omitempty"`
}

// LatentPoint is one image in the 2-D projection.
type LatentPoint struct {
	ImageID   string  `json:"image_id" validate:"required"`
	ProjectID string  `json:"project_id"`
	X         float64 `json:"x" validate:"gte=-1,lte=1"`
	Y         float64 `json:"y" validate:"gte=-1,lte=1"`
	Typology  string  `json:"typology,omitempty"`
	Title     string  `json:"title,omitempty"`
	Country   string  `json:"country,omitempty"`
}

type latentPointsResponse struct {
	Results []LatentPoint `json:"results"`
}

// HealthStatus is the result of GET /healthz.
type HealthStatus struct {
	OK bool `json:"ok"`
}
