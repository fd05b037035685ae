package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/urlstate"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
	"github.com/kailas-cloud/circare/internal/usecase/lens"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
	"github.com/kailas-cloud/circare/internal/usecase/weightstate"
)

// DefaultSearchTimeout bounds one search request.
const DefaultSearchTimeout = 30 * time.Second

// Search outcomes reported to Metrics.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeCancel = "cancelled"
)

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Searcher  Searcher
	Submitter feedback.Submitter
	Points    lens.PointSource
	Images    lens.ProjectImages
	Scheduler feedback.Scheduler
	Metrics   Metrics
	Logger    *zap.Logger
}

// Config tunes sessions.
type Config struct {
	SearchTimeout   time.Duration
	FeedbackDelay   time.Duration
	FeedbackTimeout time.Duration
	NotifyTTL       time.Duration
	Viewport        latent.Viewport
}

func (c Config) withDefaults() Config {
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.Viewport.Width() == 0 {
		c.Viewport = latent.DefaultViewport()
	}
	return c
}

// Session is one user's navigator: weights, latent lens, feedback and the
// search they drive. Only one search runs at a time.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	loc      *urlstate.Memory
	weights  *weightstate.State
	lens     *lens.Service
	feedback *feedback.Service
	notes    *notify.Center

	searcher Searcher
	metrics  Metrics
	logger   *zap.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	filters   search.Filters
	rerank    search.Rerank
	planMode  bool
	topK      int
	phase     search.Phase
	ref       search.Reference
	endpoint  search.Endpoint
	last      *search.Response
	loading   bool
	stale     bool
	closed    bool
	updatedAt time.Time
}

func newSession(id, query string, deps Deps, cfg Config, now func() time.Time) *Session {
	cfg = cfg.withDefaults()
	logger := deps.Logger.With(zap.String("session_id", id))
	ctx, cancel := context.WithCancel(context.Background())

	loc := urlstate.NewMemory(query)
	ws := weightstate.New(loc, weights.Default())
	ws.LoadFromURL()

	s := &Session{
		id:        id,
		createdAt: now(),
		now:       now,
		loc:       loc,
		weights:   ws,
		lens:      lens.New(deps.Points, deps.Images, cfg.Viewport, logger),
		notes:     notify.New(cfg.NotifyTTL),
		searcher:  deps.Searcher,
		metrics:   deps.Metrics,
		logger:    logger,
		timeout:   cfg.SearchTimeout,
		ctx:       ctx,
		cancel:    cancel,
		rerank:    search.DefaultRerank(),
		topK:      search.DefaultTopK,
		phase:     urlstate.ReadPhase(loc),
	}
	s.updatedAt = s.createdAt

	var fbMetrics feedback.Metrics
	if deps.Metrics != nil {
		fbMetrics = deps.Metrics
	}
	s.feedback = feedback.New(
		deps.Submitter, deps.Scheduler, s.notes, ws.Weights, fbMetrics, id,
		feedback.Config{Delay: cfg.FeedbackDelay, Timeout: cfg.FeedbackTimeout}, logger,
	)
	s.feedback.OnAdjust(s.onAdjust)
	s.lens.OnLensChange(s.onLensChange)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Weights returns the weight state.
func (s *Session) Weights() *weightstate.State { return s.weights }

// Lens returns the latent map.
func (s *Session) Lens() *lens.Service { return s.lens }

// Feedback returns the feedback submitter.
func (s *Session) Feedback() *feedback.Service { return s.feedback }

// Notifications returns the notification center.
func (s *Session) Notifications() *notify.Center { return s.notes }

// Query returns the encoded URL query string.
func (s *Session) Query() string { return s.loc.Encode() }

// Phase returns the study phase.
func (s *Session) Phase() search.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase switches the study phase and records it in the URL.
func (s *Session) SetPhase(p search.Phase) {
	s.mu.Lock()
	s.phase = p
	s.touchLocked()
	s.mu.Unlock()
	urlstate.WritePhase(s.loc, p)
}

// SetFilters replaces the attribute filters used by later searches.
func (s *Session) SetFilters(f search.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f.Normalize()
	s.touchLocked()
}

// SetRerank configures patch reranking.
func (s *Session) SetRerank(r search.Rerank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rerank = r
	s.touchLocked()
}

// SetPlanMode toggles plan-drawing search mode.
func (s *Session) SetPlanMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planMode = on
	s.touchLocked()
}

// SetTopK sets the result count. Non-positive values restore the default.
func (s *Session) SetTopK(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case k <= 0:
		k = search.DefaultTopK
	case k > search.MaxTopK:
		k = search.MaxTopK
	}
	s.topK = k
	s.touchLocked()
}

// Vote records feedback on a result of the last search.
func (s *Session) Vote(imageID string, v domfb.Vote) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil && v != domfb.VoteNone && !last.Has(imageID) {
		return fmt.Errorf("%w: %q is not in the current results", domain.ErrInvalidRequest, imageID)
	}
	return s.feedback.Toggle(imageID, v)
}

// Results returns the last successful response.
func (s *Session) Results() (search.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return search.Response{}, false
	}
	return *s.last, true
}

// Loading reports whether a search is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reference returns the active search reference.
func (s *Session) Reference() search.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref
}

// SearchFile uploads an image or PDF. The phase decides the endpoint; the
// scored phase refuses uploads.
func (s *Session) SearchFile(ctx context.Context, filename string, data []byte) (search.Response, error) {
	phase := s.Phase()
	if !phase.AllowsUpload() {
		return search.Response{}, domain.ErrUploadNotAllowed
	}
	ref, err := search.FileReference(filename, data)
	if err != nil {
		return search.Response{}, err
	}
	return s.run(ctx, ref, phase.UploadEndpoint())
}

// SearchURL searches by a remote image URL.
func (s *Session) SearchURL(ctx context.Context, rawURL string) (search.Response, error) {
	ref, err := search.URLReference(rawURL)
	if err != nil {
		return search.Response{}, err
	}
	return s.run(ctx, ref, search.EndpointSearchURL)
}

// SearchImage searches by an image already in the corpus.
func (s *Session) SearchImage(ctx context.Context, imageID string) (search.Response, error) {
	ref, err := search.ImageIDReference(imageID)
	if err != nil {
		return search.Response{}, err
	}
	return s.run(ctx, ref, search.EndpointSearchID)
}

// Refresh repeats the search for the active reference with the current
// weights, filters and lens.
func (s *Session) Refresh(ctx context.Context) (search.Response, error) {
	s.mu.Lock()
	ref, ep := s.ref, s.endpoint
	s.mu.Unlock()
	if ref.IsZero() {
		return search.Response{}, domain.ErrNoReference
	}
	return s.run(ctx, ref, ep)
}

// run searches and, while triggers arrived during the request, repeats the
// search for the then-active reference.
func (s *Session) run(ctx context.Context, ref search.Reference, ep search.Endpoint) (search.Response, error) {
	resp, err := s.searchOnce(ctx, ref, ep)
	for err == nil && s.takeStale() {
		s.mu.Lock()
		ref, ep = s.ref, s.endpoint
		s.mu.Unlock()
		resp, err = s.searchOnce(ctx, ref, ep)
	}
	return resp, err
}

func (s *Session) searchOnce(ctx context.Context, ref search.Reference, ep search.Endpoint) (search.Response, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return search.Response{}, domain.ErrSessionNotFound
	}
	if s.loading {
		s.mu.Unlock()
		return search.Response{}, domain.ErrSearchInFlight
	}
	req, err := search.NewRequest(search.Params{
		Reference: ref,
		Weights:   s.weights.Weights(),
		Filters:   s.filters,
		Lens:      s.lens.Lens(),
		Rerank:    s.rerank,
		PlanMode:  s.planMode,
		TopK:      s.topK,
		SessionID: s.id,
		Endpoint:  ep,
	})
	if err != nil {
		s.mu.Unlock()
		return search.Response{}, err
	}
	s.ref = ref
	s.endpoint = ep
	s.loading = true
	s.touchLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	start := time.Now()
	resp, err := s.searcher.Search(ctx, req)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.stale = false
		s.mu.Unlock()
		s.searchFailed(req, err, elapsed)
		return search.Response{}, err
	}
	s.last = &resp
	s.touchLocked()
	s.mu.Unlock()

	if resp.Effective != nil {
		if _, aerr := s.weights.ApplyEffective(*resp.Effective); aerr != nil {
			s.logger.Warn("Ignoring effective weights", zap.Error(aerr))
		}
	}
	s.feedback.Reset(resp.QueryID)
	s.recordSearch(req.Endpoint(), OutcomeOK, elapsed)
	s.logger.Info("Search completed",
		zap.String("endpoint", string(req.Endpoint())),
		zap.String("query_id", resp.QueryID),
		zap.Int("results", len(resp.Items)),
		zap.Int("lens", req.Lens().Len()),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func (s *Session) searchFailed(req search.Request, err error, elapsed time.Duration) {
	if errors.Is(err, context.Canceled) {
		s.recordSearch(req.Endpoint(), OutcomeCancel, elapsed)
		s.logger.Debug("Search cancelled", zap.String("endpoint", string(req.Endpoint())))
		return
	}
	s.recordSearch(req.Endpoint(), OutcomeError, elapsed)
	s.logger.Warn("Search failed",
		zap.String("endpoint", string(req.Endpoint())),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	msg := "Search failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "Search timed out"
	}
	s.notes.Notify(notify.Error, msg)
}

func (s *Session) recordSearch(ep search.Endpoint, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSearch(string(ep), outcome, d)
	}
}

func (s *Session) takeStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stale := s.stale
	s.stale = false
	return stale && !s.ref.IsZero() && !s.closed
}

// rerun repeats the active search after a lens change or a feedback
// adjustment. A search already in flight picks the change up when it ends.
func (s *Session) rerun(reason string) {
	s.mu.Lock()
	if s.ref.IsZero() || s.closed {
		s.mu.Unlock()
		return
	}
	if s.loading {
		s.stale = true
		s.mu.Unlock()
		return
	}
	ref, ep := s.ref, s.endpoint
	s.mu.Unlock()

	if _, err := s.run(s.ctx, ref, ep); err != nil && !errors.Is(err, domain.ErrSearchInFlight) {
		s.logger.Debug("Re-search failed", zap.String("reason", reason), zap.Error(err))
	}
}

func (s *Session) onLensChange(l latent.Lens) {
	if s.metrics != nil {
		source := string(l.Source())
		if l.IsEmpty() {
			source = "clear"
		}
		s.metrics.RecordLensChange(source)
	}
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
	s.rerun("lens")
}

func (s *Session) onAdjust(w weights.Weights) {
	if _, err := s.weights.ApplyEffective(w); err != nil {
		s.logger.Warn("Ignoring adjusted weights", zap.Error(err))
		return
	}
	s.rerun("feedback")
}

// Snapshot captures the persistable state.
func (s *Session) Snapshot() domsess.Snapshot {
	s.mu.Lock()
	snap := domsess.Snapshot{
		ID:        s.id,
		Filters:   s.filters,
		Rerank:    s.rerank,
		PlanMode:  s.planMode,
		TopK:      s.topK,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	switch s.ref.Kind() {
	case search.RefURL:
		snap.RefURL = s.ref.URL()
	case search.RefImageID:
		snap.RefImageID = s.ref.ImageID()
	}
	s.mu.Unlock()

	snap.Query = s.loc.Encode()
	snap.Lens = s.lens.Lens()
	snap.Project = s.lens.SelectedProject()
	snap.QueryID = s.feedback.QueryID()
	snap.Votes = s.feedback.Votes()
	return snap
}

// restore applies a persisted snapshot without triggering searches or
// feedback submissions. File references are not persisted.
func (s *Session) restore(snap domsess.Snapshot) {
	s.mu.Lock()
	s.filters = snap.Filters.Normalize()
	s.rerank = snap.Rerank
	s.planMode = snap.PlanMode
	if snap.TopK > 0 {
		s.topK = snap.TopK
	}
	switch {
	case snap.RefURL != "":
		if ref, err := search.URLReference(snap.RefURL); err == nil {
			s.ref, s.endpoint = ref, search.EndpointSearchURL
		}
	case snap.RefImageID != "":
		if ref, err := search.ImageIDReference(snap.RefImageID); err == nil {
			s.ref, s.endpoint = ref, search.EndpointSearchID
		}
	}
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	s.updatedAt = snap.UpdatedAt
	s.mu.Unlock()

	s.lens.Restore(snap.Lens, snap.Project)
	if snap.QueryID != "" {
		s.feedback.Restore(snap.QueryID, snap.Votes)
	}
}

// Close cancels an in-flight search and drops pending feedback.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.feedback.Close()
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}
