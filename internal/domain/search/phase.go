package search

// Phase is the study phase selected by the `phase` URL parameter.
type Phase string

// Phase constants.
const (
	// PhaseNone is the open navigator: uploads go to /search/file.
	PhaseNone Phase = "none"
	// PhaseScored runs preset queries only; uploads are refused.
	PhaseScored Phase = "scored"
	// PhaseScoredUpload lets participants upload a JPG/PNG reference.
	PhaseScoredUpload Phase = "scored-upload"
	// PhaseExplore accepts JPG/PNG/PDF uploads.
	PhaseExplore Phase = "explore"
)

// ParsePhase maps a URL value to a phase. Unknown or empty values read as PhaseNone.
func ParsePhase(s string) Phase {
	switch Phase(s) {
	case PhaseScored, PhaseScoredUpload, PhaseExplore:
		return Phase(s)
	}
	return PhaseNone
}

// AllowsUpload reports whether file uploads are permitted.
func (p Phase) AllowsUpload() bool {
	return p != PhaseScored
}

// Endpoint is the upstream endpoint a file search is sent to.
type Endpoint string

// Upload endpoints of the search API.
const (
	EndpointSearchFile Endpoint = "/search/file"
	EndpointQueryImage Endpoint = "/upload/query-image"
	EndpointExplore    Endpoint = "/upload/explore"
	EndpointSearchURL  Endpoint = "/search/url"
	EndpointSearchID   Endpoint = "/search/id"
)

// UploadEndpoint picks the upload endpoint variant of the phase.
func (p Phase) UploadEndpoint() Endpoint {
	switch p {
	case PhaseScoredUpload:
		return EndpointQueryImage
	case PhaseExplore:
		return EndpointExplore
	}
	return EndpointSearchFile
}
