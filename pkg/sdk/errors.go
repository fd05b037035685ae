package circare

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/circare/internal/domain"
)

// Sentinel errors. Use errors.Is() to check.
var (
	ErrUpstream        = domain.ErrUpstream
	ErrInvalidResponse = domain.ErrInvalidResponse
	ErrInvalidRequest  = domain.ErrInvalidRequest

	ErrUnauthorized         = errors.New("circare: unauthorized")
	ErrNotFound             = errors.New("circare: not found")
	ErrPayloadTooLarge      = errors.New("circare: payload too large")
	ErrUnsupportedMediaType = errors.New("circare: unsupported media type")
	ErrRateLimited          = errors.New("circare: rate limited")
)

// APIError is a non-2xx response of the search API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("circare: api error: status %d", e.Status)
	}
	return fmt.Sprintf("circare: api error: status %d: %s", e.Status, e.Detail)
}

// Unwrap exposes ErrUpstream and, for well-known statuses, a specific sentinel.
func (e *APIError) Unwrap() []error {
	errs := []error{ErrUpstream}
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, ErrUnauthorized)
	case http.StatusNotFound:
		errs = append(errs, ErrNotFound)
	case http.StatusRequestEntityTooLarge:
		errs = append(errs, ErrPayloadTooLarge)
	case http.StatusUnsupportedMediaType:
		errs = append(errs, ErrUnsupportedMediaType)
	case http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimited)
	}
	return errs
}

// newAPIError extracts the FastAPI-style {"detail": ...} message when present.
func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			detail = s
		} else {
			detail = string(payload.Detail)
		}
	}
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return &APIError{Status: status, Detail: detail}
}
