package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/circare/internal/logger"
	healthuc "github.com/kailas-cloud/circare/internal/usecase/health"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
)

const (
	maxJSONBody      = 1 << 20
	defaultMaxUpload = 20 << 20
)

// Server is the navigator backend-for-frontend: one JSON API per session.
type Server struct {
	sessions      *navigator.Manager
	health        *healthuc.Service
	logger        *zap.Logger
	validate      *validator.Validate
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(sessions *navigator.Manager, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions:      sessions,
		health:        health,
		logger:        logger,
		validate:      validator.New(),
		maxUpload:     defaultMaxUpload,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithMaxUpload caps multipart upload bodies.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r gochi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)

		r.Route("/{session_id}", func(r gochi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/close", s.CloseSession)

			r.Put("/weights", s.SetWeights)
			r.Delete("/weights", s.ResetWeights)
			r.Put("/weights/{axis}", s.SetWeightAxis)
			r.Get("/presets", s.ListPresets)
			r.Post("/presets/{preset}", s.ApplyPreset)

			r.Put("/filters", s.SetFilters)
			r.Put("/rerank", s.SetRerank)
			r.Put("/plan-mode", s.SetPlanMode)
			r.Put("/top-k", s.SetTopK)
			r.Put("/phase", s.SetPhase)

			r.Post("/search/file", s.SearchFile)
			r.Post("/search/url", s.SearchURL)
			r.Post("/search/image", s.SearchImage)
			r.Post("/search/refresh", s.RefreshSearch)
			r.Get("/results", s.GetResults)

			r.Post("/lens/pointer", s.PointerEvent)
			r.Put("/lens/project", s.SelectProject)
			r.Delete("/lens/project", s.ClearProject)
			r.Delete("/lens", s.ClearLens)
			r.Get("/lens/scene", s.GetScene)
			r.Get("/lens/map", s.GetMap)

			r.Put("/votes/{image_id}", s.Vote)
			r.Post("/votes/flush", s.FlushVotes)

			r.Get("/notifications", s.ListNotifications)
			r.Delete("/notifications/{notification_id}", s.DismissNotification)
		})
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	// Degraded still serves: sessions work, they are just not persisted.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// session resolves the {session_id} path parameter to a live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*navigator.Session, bool) {
	var id string
	if err := pathParam(r, "session_id", &id); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return nil, false
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return nil, false
	}
	return sess, true
}

// persist saves the session after a mutation. A store failure does not fail
// the request: the live session already holds the change.
func (s *Server) persist(ctx context.Context, sess *navigator.Session) {
	if err := s.sessions.Persist(ctx, sess); err != nil {
		logpkg.FromContext(ctx).Warn("Session persist failed",
			zap.String("session_id", sess.ID()), zap.Error(err))
	}
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func (s *Server) decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return false
	}
	return true
}

// pathParam binds a required simple-style path parameter.
func pathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}

// queryParam binds an optional form-style query parameter.
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}
