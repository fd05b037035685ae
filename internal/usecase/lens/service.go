package lens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	"github.com/kailas-cloud/circare/internal/domain/latent"
)

// Status is the load state of the point set.
type Status string

const (
	// StatusPending means points have not been requested yet.
	StatusPending Status = "pending"
	// StatusReady means points are loaded and gestures are accepted.
	StatusReady Status = "ready"
	// StatusError means the point fetch failed; no scene is available.
	StatusError Status = "error"
)

// Event is the observable result of one pointer event.
type Event struct {
	Brush       latent.Outcome
	Hover       *latent.Point
	LensChanged bool
	Lens        latent.Lens
}

// Service is the latent map: point set, brush gesture, hover, project
// highlight and the lens that scopes searches.
type Service struct {
	source    PointSource
	images    ProjectImages
	view      latent.Viewport
	hitRadius float64
	logger    *zap.Logger

	mu        sync.Mutex
	status    Status
	loadErr   error
	points    latent.PointSet
	brush     *latent.Brush
	hover     *latent.Point
	project   string
	halo      map[string]struct{}
	lens      latent.Lens
	listeners []Listener
}

// New creates a lens service drawing into view. images may be nil.
func New(source PointSource, images ProjectImages, view latent.Viewport, logger *zap.Logger) *Service {
	return &Service{
		source:    source,
		images:    images,
		view:      view,
		hitRadius: latent.DefaultHitRadius,
		logger:    logger,
		status:    StatusPending,
		brush:     latent.NewBrush(),
	}
}

// Load fetches the point set. Once loaded it is never fetched again; after a
// failure the service stays in the error state until Load is called again.
// Invalid rows are dropped.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusReady {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	if s.source == nil {
		return domain.ErrPointsUnavailable
	}

	raw, err := s.source.LatentPoints(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusReady {
		return nil
	}
	if err != nil {
		s.status = StatusError
		s.loadErr = fmt.Errorf("%w: %w", domain.ErrPointsUnavailable, err)
		s.logger.Warn("Latent points fetch failed", zap.Error(err))
		return s.loadErr
	}

	valid := make([]latent.Point, 0, len(raw))
	for i, p := range raw {
		if verr := p.Validate(); verr != nil {
			s.logger.Debug("Dropping latent point", zap.Int("row", i), zap.Error(verr))
			continue
		}
		valid = append(valid, p)
	}
	if dropped := len(raw) - len(valid); dropped > 0 {
		s.logger.Warn("Dropped invalid latent points", zap.Int("dropped", dropped), zap.Int("kept", len(valid)))
	}

	s.points = latent.NewPointSet(valid)
	s.status = StatusReady
	s.loadErr = nil
	if s.project != "" {
		s.halo = toSet(s.points.ProjectImageIDs(s.project))
	}
	return nil
}

// Status returns the load state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the load failure, if any.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Points returns the loaded point set (empty unless ready).
func (s *Service) Points() latent.PointSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

// Viewport returns the canvas geometry.
func (s *Service) Viewport() latent.Viewport { return s.view }

// Lens returns the active lens.
func (s *Service) Lens() latent.Lens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lens
}

// Hover returns the point under the cursor.
func (s *Service) Hover() (latent.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hover == nil {
		return latent.Point{}, false
	}
	return *s.hover, true
}

// SelectedProject returns the highlighted project id.
func (s *Service) SelectedProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// OnLensChange registers a listener for lens replacements and clears.
func (s *Service) OnLensChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// PointerDown starts a brush gesture. Ignored outside the canvas or without points.
func (s *Service) PointerDown(p latent.Pixel) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady || !s.view.Contains(p) {
		return Event{Brush: latent.Outcome{State: s.brush.State()}, Hover: s.hover, Lens: s.lens}
	}
	return Event{Brush: s.brush.Down(p), Hover: s.hover, Lens: s.lens}
}

// PointerMove updates the live rectangle and the hovered point.
func (s *Service) PointerMove(p latent.Pixel) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReady {
		return Event{Brush: latent.Outcome{State: latent.BrushIdle}}
	}
	out := s.brush.Move(p)
	if hit, ok := s.view.HitTest(s.points, p, s.hitRadius); ok {
		s.hover = &hit
	} else {
		s.hover = nil
	}
	return Event{Brush: out, Hover: s.hover, Lens: s.lens}
}

// PointerUp commits the gesture. The points inside the rectangle replace the
// lens. A zero-area rectangle (a click) or one that contains no point leaves
// the lens untouched.
func (s *Service) PointerUp(p latent.Pixel) Event {
	s.mu.Lock()
	if s.status != StatusReady {
		s.mu.Unlock()
		return Event{Brush: latent.Outcome{State: latent.BrushIdle}}
	}
	out := s.brush.Up(p)
	ev := Event{Brush: out, Hover: s.hover, Lens: s.lens}
	if out.State != latent.BrushCommitted || out.Rect.Empty() {
		s.mu.Unlock()
		return ev
	}
	ids := s.view.Select(s.points, out.Rect)
	if len(ids) == 0 {
		s.mu.Unlock()
		return ev
	}
	s.lens = latent.NewLens(latent.SourceBrush, ids)
	ev.Lens = s.lens
	ev.LensChanged = true
	ls := s.snapshotListeners()
	s.mu.Unlock()

	fire(ls, ev.Lens)
	return ev
}

// PointerLeave cancels a gesture in progress and clears hover.
func (s *Service) PointerLeave() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hover = nil
	return Event{Brush: s.brush.Leave(), Lens: s.lens}
}

// SelectProject highlights a project's points and makes them the lens.
// Without loaded points the image ids are resolved through ProjectImages.
func (s *Service) SelectProject(ctx context.Context, projectID string) (latent.Lens, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return latent.Lens{}, fmt.Errorf("%w: project id is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	ready := s.status == StatusReady
	var ids []string
	if ready {
		ids = s.points.ProjectImageIDs(projectID)
	}
	s.mu.Unlock()

	if !ready || len(ids) == 0 {
		if s.images == nil {
			if !ready {
				return latent.Lens{}, domain.ErrPointsUnavailable
			}
		} else {
			fetched, err := s.images.ProjectImageIDs(ctx, projectID)
			if err != nil {
				return latent.Lens{}, fmt.Errorf("project images: %w", err)
			}
			ids = fetched
		}
	}

	l := latent.NewProjectLens(projectID, ids)

	s.mu.Lock()
	s.project = projectID
	s.halo = toSet(ids)
	s.lens = l
	ls := s.snapshotListeners()
	s.mu.Unlock()

	fire(ls, l)
	return l, nil
}

// ClearProject removes the project highlight. A lens that came from the
// project selection is dropped with it; a brushed lens is kept.
func (s *Service) ClearProject() {
	s.mu.Lock()
	s.project = ""
	s.halo = nil
	if s.lens.Source() != latent.SourceProject {
		s.mu.Unlock()
		return
	}
	s.lens = latent.Lens{}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	fire(ls, latent.Lens{})
}

// Clear drops the lens and notifies listeners.
func (s *Service) Clear() {
	s.mu.Lock()
	s.lens = latent.Lens{}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	fire(ls, latent.Lens{})
}

// Scene returns the draw list. It fails while points are unavailable.
func (s *Service) Scene() (latent.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusError:
		return latent.Scene{}, s.loadErr
	case StatusPending:
		return latent.Scene{}, domain.ErrPointsUnavailable
	}
	sel := latent.Selection{Highlighted: s.halo, Lens: s.lens}
	if r, ok := s.brush.Live(); ok {
		sel.Brush = &r
	}
	return latent.BuildScene(s.view, s.points, sel), nil
}

func (s *Service) snapshotListeners() []Listener {
	return append([]Listener(nil), s.listeners...)
}

func fire(ls []Listener, l latent.Lens) {
	for _, fn := range ls {
		fn(l)
	}
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// Restore sets the lens and project highlight without notifying listeners.
// It is used when a persisted session is rebuilt.
func (s *Service) Restore(l latent.Lens, projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lens = l
	s.project = projectID
	s.halo = nil
	if projectID == "" {
		return
	}
	if s.status == StatusReady {
		s.halo = toSet(s.points.ProjectImageIDs(projectID))
	} else {
		s.halo = toSet(l.ImageIDs())
	}
}
