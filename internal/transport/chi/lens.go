package chi

import (
	"bytes"
	"net/http"

	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/render/echarts"
	lensuc "github.com/kailas-cloud/circare/internal/usecase/lens"
)

// PointerEvent handles POST /sessions/{session_id}/lens/pointer. A committed
// brush replaces the lens and, with an active reference, re-runs the search
// before the response is written.
func (s *Server) PointerEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req PointerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	lens := sess.Lens()
	p := latent.Pixel{X: req.X, Y: req.Y}
	var out lensuc.Event
	switch req.Type {
	case "down":
		out = lens.PointerDown(p)
	case "move":
		out = lens.PointerMove(p)
	case "up":
		out = lens.PointerUp(p)
	default:
		out = lens.PointerLeave()
	}

	resp := PointerResponse{
		Brush:       out.Brush.State,
		Hover:       out.Hover,
		LensChanged: out.LensChanged,
		LensIDs:     lens.Lens().ImageIDs(),
	}
	if out.Brush.State == latent.BrushBrushing || out.Brush.State == latent.BrushCommitted {
		rect := out.Brush.Rect
		resp.Rect = &rect
	}
	if out.LensChanged {
		s.persist(r.Context(), sess)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SelectProject handles PUT /sessions/{session_id}/lens/project.
func (s *Server) SelectProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req ProjectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	l, err := sess.Lens().SelectProject(r.Context(), req.ProjectID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, lensToResponse(l))
}

// ClearProject handles DELETE /sessions/{session_id}/lens/project.
func (s *Server) ClearProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Lens().ClearProject()
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, lensToResponse(sess.Lens().Lens()))
}

// ClearLens handles DELETE /sessions/{session_id}/lens.
func (s *Server) ClearLens(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Lens().Clear()
	s.persist(r.Context(), sess)
	writeJSON(w, http.StatusOK, lensToResponse(sess.Lens().Lens()))
}

// GetScene handles GET /sessions/{session_id}/lens/scene: the canvas draw list.
func (s *Server) GetScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	scene, err := sess.Lens().Scene()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// GetMap handles GET /sessions/{session_id}/lens/map: an interactive HTML
// scatter of the latent space with the project halo and lens overlays.
func (s *Server) GetMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var title *string
	if err := queryParam(r, "title", &title); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	lens := sess.Lens()
	if _, err := lens.Scene(); err != nil {
		s.handleDomainError(w, err)
		return
	}
	points := lens.Points()
	cfg := echarts.DefaultMapConfig()
	if title != nil && *title != "" {
		cfg.Title = *title
	}

	var buf bytes.Buffer
	err := echarts.RenderLatentMap(&buf, echarts.MapData{
		Points:      points,
		Highlighted: points.ProjectImageIDs(lens.SelectedProject()),
		Lens:        lens.Lens(),
	}, cfg)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
