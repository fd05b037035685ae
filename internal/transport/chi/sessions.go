package chi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	logpkg "github.com/kailas-cloud/circare/internal/logger"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeOptionalJSON(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.SessionID, strings.TrimPrefix(req.Query, "?"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SessionList{Sessions: ids})
}

// GetSession handles GET /sessions/{session_id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// DeleteSession handles DELETE /sessions/{session_id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "session_id", &id); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles POST /sessions/{session_id}/close: the session is
// saved, its in-flight search cancelled and it leaves memory.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "session_id", &id); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := s.sessions.Close(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetWeights handles PUT /sessions/{session_id}/weights.
func (s *Server) SetWeights(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req RawWeightsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.Weights().SetAll(weights.Raw{V: *req.V, S: *req.S, A: *req.A})
	s.afterChange(w, r, sess)
}

// SetWeightAxis handles PUT /sessions/{session_id}/weights/{axis}.
func (s *Server) SetWeightAxis(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var name string
	if err := pathParam(r, "axis", &name); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	axis, err := weights.ParseAxis(name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	var req AxisRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if _, err := sess.Weights().SetRaw(axis, *req.Value); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.afterChange(w, r, sess)
}

// ResetWeights handles DELETE /sessions/{session_id}/weights: visual-only
// weights and no weight keys in the URL.
func (s *Server) ResetWeights(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Weights().Reset()
	s.afterChange(w, r, sess)
}

// ListPresets handles GET /sessions/{session_id}/presets.
func (s *Server) ListPresets(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	ps := weights.Presets()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	writeJSON(w, http.StatusOK, PresetList{Presets: names})
}

// ApplyPreset handles POST /sessions/{session_id}/presets/{preset}.
func (s *Server) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var name string
	if err := pathParam(r, "preset", &name); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if _, err := sess.Weights().ApplyPreset(name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.afterChange(w, r, sess)
}

// afterChange persists the session and, with ?refresh=true, repeats the
// active search under the new settings.
func (s *Server) afterChange(w http.ResponseWriter, r *http.Request, sess *navigator.Session) {
	s.persist(r.Context(), sess)
	if !s.refreshRequested(w, r, sess) {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

// refreshRequested runs the optional re-search. It returns false once it has
// written an error response.
func (s *Server) refreshRequested(w http.ResponseWriter, r *http.Request, sess *navigator.Session) bool {
	var refresh *bool
	if err := queryParam(r, "refresh", &refresh); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return false
	}
	if refresh == nil || !*refresh {
		return true
	}
	if sess.Reference().IsZero() {
		return true
	}
	if _, err := sess.Refresh(r.Context()); err != nil {
		logpkg.FromContext(r.Context()).Debug("Refresh after settings change failed",
			zap.String("session_id", sess.ID()), zap.Error(err))
		s.handleDomainError(w, err)
		return false
	}
	s.persist(r.Context(), sess)
	return true
}

// SetFilters handles PUT /sessions/{session_id}/filters.
func (s *Server) SetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req FiltersRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.SetFilters(search.Filters{
		Typology:    req.Typology,
		ClimateBin:  req.ClimateBin,
		MassingType: req.MassingType,
		Strict:      req.Strict,
	})
	s.afterChange(w, r, sess)
}

// SetRerank handles PUT /sessions/{session_id}/rerank.
func (s *Server) SetRerank(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req RerankRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rr := search.Rerank{Enabled: req.Enabled, ReTopK: req.ReTopK}
	if rr.Enabled && rr.ReTopK == 0 {
		rr.ReTopK = search.DefaultReTopK
	}
	sess.SetRerank(rr)
	s.afterChange(w, r, sess)
}

// SetPlanMode handles PUT /sessions/{session_id}/plan-mode.
func (s *Server) SetPlanMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req PlanModeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.SetPlanMode(req.Enabled)
	s.afterChange(w, r, sess)
}

// SetTopK handles PUT /sessions/{session_id}/top-k.
func (s *Server) SetTopK(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req TopKRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.SetTopK(req.TopK)
	s.afterChange(w, r, sess)
}

// SetPhase handles PUT /sessions/{session_id}/phase.
func (s *Server) SetPhase(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req PhaseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.SetPhase(search.ParsePhase(req.Phase))
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, sess.View())
}

// ListNotifications handles GET /sessions/{session_id}/notifications.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	active := sess.Notifications().Active()
	if active == nil {
		active = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, active)
}

// DismissNotification handles DELETE /sessions/{session_id}/notifications/{notification_id}.
func (s *Server) DismissNotification(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var id string
	if err := pathParam(r, "notification_id", &id); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if !sess.Notifications().Dismiss(id) {
		writeError(w, http.StatusNotFound, CodeNotificationNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
