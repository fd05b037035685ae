package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	"github.com/kailas-cloud/circare/internal/domain/search"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/circare/internal/usecase/health"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
)

// --- Mocks ---

type mockSearcher struct {
	mu       sync.Mutex
	reqs     []search.Request
	searchFn func(ctx context.Context, req search.Request) (search.Response, error)
}

func (m *mockSearcher) Search(ctx context.Context, req search.Request) (search.Response, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	n := len(m.reqs)
	fn := m.searchFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	items := []search.Item{
		{Rank: 1, ImageID: "r1", ProjectID: "p1"},
		{Rank: 2, ImageID: "r2", ProjectID: "p2"},
	}
	return search.NewResponse(fmt.Sprintf("q%d", n), 7, req.Weights(), nil, req.Filters(), items)
}

func (m *mockSearcher) requests() []search.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]search.Request(nil), m.reqs...)
}

type mockSubmitter struct {
	mu  sync.Mutex
	got []domfb.Submission
}

func (m *mockSubmitter) SubmitFeedback(_ context.Context, s domfb.Submission) (domfb.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, s)
	return domfb.Result{}, nil
}

func (m *mockSubmitter) submissions() []domfb.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domfb.Submission(nil), m.got...)
}

type mockPoints struct {
	err error
}

func (m *mockPoints) LatentPoints(context.Context) ([]latent.Point, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []latent.Point{
		{ImageID: "a", ProjectID: "p1", X: -0.5, Y: 0.5, Typology: "education"},
		{ImageID: "b", ProjectID: "p1", X: -0.4, Y: 0.4, Typology: "education"},
		{ImageID: "c", ProjectID: "p2", X: 0.5, Y: -0.5, Typology: "cultural"},
	}, nil
}

// idleScheduler never fires; tests flush votes explicitly.
type idleScheduler struct{}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (idleScheduler) AfterFunc(time.Duration, func()) feedback.Timer { return idleTimer{} }

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- Fixture ---

type fixture struct {
	srv       *httptest.Server
	searcher  *mockSearcher
	submitter *mockSubmitter
	api       *mockPinger
	store     *mockPinger
}

func newFixture(t *testing.T, points *mockPoints) *fixture {
	t.Helper()
	if points == nil {
		points = &mockPoints{}
	}
	f := &fixture{
		searcher:  &mockSearcher{},
		submitter: &mockSubmitter{},
		api:       &mockPinger{},
		store:     &mockPinger{},
	}
	mgr := navigator.NewManager(navigator.Deps{
		Searcher:  f.searcher,
		Submitter: f.submitter,
		Points:    points,
		Scheduler: idleScheduler{},
		Logger:    zap.NewNop(),
	}, navigator.Config{}, nil)
	t.Cleanup(func() { _ = mgr.CloseAll(context.Background()) })

	server := NewServer(mgr, healthuc.New(f.api, f.store), zap.NewNop()).WithMaxUpload(1 << 10)
	r := gochi.NewRouter()
	server.Routes(r)
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) createSession(t *testing.T, query string) navigator.View {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Query: query})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	return decode[navigator.View](t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, code ErrorCode) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	e := decode[ErrorResponse](t, resp)
	if e.Code != code {
		t.Errorf("code = %q, want %q (message %q)", e.Code, code, e.Message)
	}
}
