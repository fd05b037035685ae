package navigator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
)

// --- Mocks ---

type mockSearcher struct {
	mu        sync.Mutex
	reqs      []search.Request
	effective *weights.Weights
	err       error
	// block makes Search wait for release or context cancellation.
	block   bool
	entered chan struct{}
	release chan struct{}
}

func newMockSearcher() *mockSearcher {
	return &mockSearcher{entered: make(chan struct{}, 8), release: make(chan struct{}, 8)}
}

func (m *mockSearcher) Search(ctx context.Context, req search.Request) (search.Response, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	n := len(m.reqs)
	block, err, eff := m.block, m.err, m.effective
	m.mu.Unlock()

	if block {
		m.entered <- struct{}{}
		select {
		case <-m.release:
		case <-ctx.Done():
			return search.Response{}, ctx.Err()
		}
	}
	if err != nil {
		return search.Response{}, err
	}
	items := []search.Item{
		{Rank: 1, ImageID: "r1", ProjectID: "p1"},
		{Rank: 2, ImageID: "r2", ProjectID: "p2"},
	}
	return search.NewResponse(fmt.Sprintf("q%d", n), 5, req.Weights(), eff, req.Filters(), items)
}

func (m *mockSearcher) requests() []search.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]search.Request(nil), m.reqs...)
}

type mockSubmitter struct {
	mu     sync.Mutex
	got    []domfb.Submission
	result domfb.Result
}

func (m *mockSubmitter) SubmitFeedback(_ context.Context, s domfb.Submission) (domfb.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, s)
	return m.result, nil
}

type mockPoints struct {
	mu     sync.Mutex
	calls  int
	err    error
	points []latent.Point
}

func (m *mockPoints) LatentPoints(context.Context) ([]latent.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.points, nil
}

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) feedback.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) elapse() {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type mockMetrics struct {
	mu       sync.Mutex
	searches []string
	lens     []string
	feedback []string
}

func (m *mockMetrics) RecordSearch(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, outcome)
}

func (m *mockMetrics) RecordLensChange(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lens = append(m.lens, source)
}

func (m *mockMetrics) RecordFeedback(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, outcome)
}

type mockRepo struct {
	mu    sync.Mutex
	snaps map[string]domsess.Snapshot
}

func newMockRepo() *mockRepo {
	return &mockRepo{snaps: make(map[string]domsess.Snapshot)}
}

func (m *mockRepo) Save(_ context.Context, s domsess.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.ID] = s
	return nil
}

func (m *mockRepo) Load(_ context.Context, id string) (domsess.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	if !ok {
		return domsess.Snapshot{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func (m *mockRepo) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.snaps))
	for id := range m.snaps {
		out = append(out, id)
	}
	return out, nil
}

// --- Fixture ---

type fixture struct {
	mgr       *Manager
	searcher  *mockSearcher
	submitter *mockSubmitter
	points    *mockPoints
	sched     *fakeScheduler
	metrics   *mockMetrics
	repo      *mockRepo
}

func fivePoints() []latent.Point {
	return []latent.Point{
		{ImageID: "a", ProjectID: "p1", X: -0.5, Y: 0.5},
		{ImageID: "b", ProjectID: "p1", X: -0.4, Y: 0.4},
		{ImageID: "c", ProjectID: "p2", X: 0.5, Y: -0.5},
		{ImageID: "d", ProjectID: "p3", X: 0.9, Y: 0.9},
		{ImageID: "e", ProjectID: "p3", X: 0, Y: 0},
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		searcher:  newMockSearcher(),
		submitter: &mockSubmitter{},
		points:    &mockPoints{points: fivePoints()},
		sched:     &fakeScheduler{},
		metrics:   &mockMetrics{},
		repo:      newMockRepo(),
	}
	f.mgr = NewManager(Deps{
		Searcher:  f.searcher,
		Submitter: f.submitter,
		Points:    f.points,
		Scheduler: f.sched,
		Metrics:   f.metrics,
		Logger:    zap.NewNop(),
	}, cfg, f.repo)
	return f
}

func (f *fixture) session(t *testing.T, query string) *Session {
	t.Helper()
	s, err := f.mgr.Create(context.Background(), "", query)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}
