package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeSessionNotFound      ErrorCode = "session_not_found"
	CodeNotificationNotFound ErrorCode = "notification_not_found"
	CodeSearchInFlight       ErrorCode = "search_in_flight"
	CodeNoReference          ErrorCode = "no_reference"
	CodeUploadNotAllowed     ErrorCode = "upload_not_allowed"
	CodeUnknownPreset        ErrorCode = "unknown_preset"
	CodeInvalidWeights       ErrorCode = "invalid_weights"
	CodePointsUnavailable    ErrorCode = "points_unavailable"
	CodeUpstreamError        ErrorCode = "upstream_error"
	CodeInvalidUpstream      ErrorCode = "invalid_upstream_response"
	CodeUpstreamTimeout      ErrorCode = "upstream_timeout"
	CodeSearchCancelled      ErrorCode = "search_cancelled"
	CodePayloadTooLarge      ErrorCode = "payload_too_large"
	CodeUnsupportedMedia     ErrorCode = "unsupported_media_type"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrSearchInFlight, http.StatusConflict, CodeSearchInFlight),
		sentinelHandler(domain.ErrNoReference, http.StatusConflict, CodeNoReference),
		sentinelHandler(domain.ErrUploadNotAllowed, http.StatusForbidden, CodeUploadNotAllowed),
		sentinelHandler(domain.ErrUnknownPreset, http.StatusBadRequest, CodeUnknownPreset),
		sentinelHandler(domain.ErrInvalidWeights, http.StatusBadRequest, CodeInvalidWeights),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrPointsUnavailable, http.StatusServiceUnavailable, CodePointsUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeUpstreamTimeout),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, CodeSearchCancelled),
		sentinelHandler(domain.ErrInvalidResponse, http.StatusBadGateway, CodeInvalidUpstream),
		upstreamHandler,
	}
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Input validation errors keep their full text; everything else collapses to
// the sentinel.
func safeDomainMessage(err error) string {
	for _, s := range []error{domain.ErrInvalidRequest, domain.ErrInvalidWeights, domain.ErrUnknownPreset} {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrSearchInFlight,
		domain.ErrNoReference,
		domain.ErrUploadNotAllowed,
		domain.ErrPointsUnavailable,
		domain.ErrInvalidResponse,
		context.DeadlineExceeded,
		context.Canceled,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamHandler passes through the upload rejections the search API makes
// on the user's behalf and reports everything else as a bad gateway.
func upstreamHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrUpstream) {
		return false
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		switch ue.Status {
		case http.StatusRequestEntityTooLarge:
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, detailOr(ue, msg))
			return true
		case http.StatusUnsupportedMediaType:
			writeError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMedia, detailOr(ue, msg))
			return true
		}
	}
	writeError(w, http.StatusBadGateway, CodeUpstreamError, msg)
	return true
}

func detailOr(ue *domain.UpstreamError, msg string) string {
	if ue.Detail != "" {
		return ue.Detail
	}
	return msg
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
