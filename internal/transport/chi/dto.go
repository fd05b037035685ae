package chi

import (
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
)

// CreateSessionRequest opens a session, optionally under a known id and with
// the page's query string (wv, ws, wa, phase).
type CreateSessionRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Query     string `json:"query" validate:"max=4096"`
}

// SessionList is the body of GET /sessions.
type SessionList struct {
	Sessions []string `json:"sessions"`
}

// RawWeightsRequest sets all three sliders.
type RawWeightsRequest struct {
	V *int `json:"v" validate:"required,gte=0,lte=100"`
	S *int `json:"s" validate:"required,gte=0,lte=100"`
	A *int `json:"a" validate:"required,gte=0,lte=100"`
}

// AxisRequest sets one slider.
type AxisRequest struct {
	Value *int `json:"value" validate:"required"`
}

// PresetList is the body of GET /presets.
type PresetList struct {
	Presets []string `json:"presets"`
}

// FiltersRequest replaces the attribute filters.
type FiltersRequest struct {
	Typology    string `json:"typology" validate:"max=64"`
	ClimateBin  string `json:"climate_bin" validate:"max=64"`
	MassingType string `json:"massing_type" validate:"max=64"`
	Strict      bool   `json:"strict"`
}

// RerankRequest configures patch reranking.
type RerankRequest struct {
	Enabled bool `json:"enabled"`
	ReTopK  int  `json:"re_topk" validate:"gte=0,lte=500"`
}

// PlanModeRequest toggles floor-plan search.
type PlanModeRequest struct {
	Enabled bool `json:"enabled"`
}

// TopKRequest sets the result count.
type TopKRequest struct {
	TopK int `json:"top_k" validate:"gte=0,lte=200"`
}

// PhaseRequest switches the study phase.
type PhaseRequest struct {
	Phase string `json:"phase" validate:"oneof='' none scored scored-upload explore"`
}

// SearchURLRequest searches by a public image URL.
type SearchURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// SearchImageRequest searches by a corpus image id.
type SearchImageRequest struct {
	ImageID string `json:"image_id" validate:"required,max=256"`
}

// PointerRequest is one canvas pointer event in pixels.
type PointerRequest struct {
	Type string  `json:"type" validate:"oneof=down move up leave"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PointerResponse reports the brush state after a pointer event.
type PointerResponse struct {
	Brush       latent.BrushState `json:"brush"`
	Rect        *latent.Rect      `json:"rect,omitempty"`
	Hover       *latent.Point     `json:"hover,omitempty"`
	LensChanged bool              `json:"lens_changed"`
	LensIDs     []string          `json:"lens_ids"`
}

// ProjectRequest selects a project halo and lens.
type ProjectRequest struct {
	ProjectID string `json:"project_id" validate:"required,max=256"`
}

// LensResponse is the lens after a project selection or clear.
type LensResponse struct {
	Source    latent.LensSource `json:"source"`
	ProjectID string            `json:"project_id,omitempty"`
	ImageIDs  []string          `json:"image_ids"`
}

// VoteRequest records relevance feedback for one result.
type VoteRequest struct {
	Vote string `json:"vote" validate:"max=16"`
}

// VotesResponse is the pending feedback of the current query.
type VotesResponse struct {
	QueryID string         `json:"query_id"`
	State   feedback.State `json:"state"`
	Votes   domfb.Votes    `json:"votes"`
}

// ResultsResponse is the last successful search, if any.
type ResultsResponse struct {
	Loading  bool             `json:"loading"`
	Response *search.Response `json:"response,omitempty"`
}

func lensToResponse(l latent.Lens) LensResponse {
	return LensResponse{Source: l.Source(), ProjectID: l.ProjectID(), ImageIDs: l.ImageIDs()}
}
