package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWeights signals a weight triple that is negative, non-finite or out of range.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrUnknownPreset signals a preset name outside the fixed set.
	ErrUnknownPreset = errors.New("unknown weight preset")
	// ErrUploadNotAllowed signals an upload attempted in a phase that forbids it.
	ErrUploadNotAllowed = errors.New("upload not allowed in current phase")
	// ErrSearchInFlight signals a search triggered while another one is outstanding.
	ErrSearchInFlight = errors.New("search already in flight")
	// ErrNoReference signals a search without an uploaded file, url or text query.
	ErrNoReference = errors.New("no search reference")
	// ErrUpstream signals a failure of the external search API.
	ErrUpstream = errors.New("upstream search api error")
	// ErrInvalidResponse signals an upstream response that failed validation.
	ErrInvalidResponse = errors.New("invalid upstream response")
	// ErrSessionNotFound signals a missing navigator session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPointsUnavailable signals that the latent point set failed to load.
	ErrPointsUnavailable = errors.New("latent points unavailable")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// UpstreamError wraps ErrUpstream with the HTTP status returned by the search API.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", ErrUpstream.Error(), e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrUpstream.Error(), e.Status, e.Detail)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// NewUpstreamError creates an upstream error for the given status.
func NewUpstreamError(status int, detail string) error {
	return &UpstreamError{Status: status, Detail: detail}
}
