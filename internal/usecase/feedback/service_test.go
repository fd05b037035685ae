package feedback

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// --- Mocks ---

type fakeTimer struct {
	f       func()
	d       time.Duration
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

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f, d: d}
	s.timers = append(s.timers, t)
	return t
}

// elapse fires every live timer, as if the debounce window passed.
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

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type mockSubmitter struct {
	mu       sync.Mutex
	got      []domfb.Submission
	result   domfb.Result
	err      error
	entered  chan struct{}
	release  chan struct{}
	inFlight int
	maxSeen  int
}

func (m *mockSubmitter) SubmitFeedback(_ context.Context, s domfb.Submission) (domfb.Result, error) {
	m.mu.Lock()
	m.got = append(m.got, s)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	return m.result, m.err
}

func (m *mockSubmitter) submissions() []domfb.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domfb.Submission(nil), m.got...)
}

type mockNotifier struct {
	mu   sync.Mutex
	msgs []notify.Level
}

func (m *mockNotifier) Notify(level notify.Level, msg string) notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, level)
	return notify.Notification{Level: level, Message: msg}
}

type mockMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockMetrics) RecordFeedback(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

type fixture struct {
	svc      *Service
	sched    *fakeScheduler
	sub      *mockSubmitter
	notifier *mockNotifier
	metrics  *mockMetrics
}

func newFixture() *fixture {
	f := &fixture{
		sched:    &fakeScheduler{},
		sub:      &mockSubmitter{},
		notifier: &mockNotifier{},
		metrics:  &mockMetrics{},
	}
	current := func() weights.Weights { return weights.Weights{Visual: 0.7, Spatial: 0.2, Attr: 0.1} }
	f.svc = New(f.sub, f.sched, f.notifier, current, f.metrics, "sess-1", Config{}, zap.NewNop())
	f.svc.Reset("q1")
	return f
}

func mustToggle(t *testing.T, s *Service, id string, v domfb.Vote) {
	t.Helper()
	if err := s.Toggle(id, v); err != nil {
		t.Fatalf("Toggle(%s, %s): %v", id, v, err)
	}
}

// --- Tests ---

func TestDebounce_CoalescesToOneRequest(t *testing.T) {
	f := newFixture()
	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	mustToggle(t, f.svc, "b", domfb.VoteLiked)
	mustToggle(t, f.svc, "a", domfb.VoteDisliked)
	mustToggle(t, f.svc, "c", domfb.VoteLiked)
	mustToggle(t, f.svc, "c", domfb.VoteNone)

	if f.svc.State() != StatePendingSubmit {
		t.Fatalf("state = %s", f.svc.State())
	}
	if f.sched.live() != 1 {
		t.Fatalf("live timers = %d, want 1", f.sched.live())
	}
	if f.sched.timers[0].d != DefaultDelay {
		t.Errorf("delay = %v, want %v", f.sched.timers[0].d, DefaultDelay)
	}

	f.sched.elapse()

	got := f.sub.submissions()
	if len(got) != 1 {
		t.Fatalf("submissions = %d, want 1", len(got))
	}
	s := got[0]
	if s.SessionID != "sess-1" || s.QueryID != "q1" {
		t.Errorf("ids = %s/%s", s.SessionID, s.QueryID)
	}
	if !reflect.DeepEqual(s.Liked, []string{"b"}) || !reflect.DeepEqual(s.Disliked, []string{"a"}) {
		t.Errorf("liked = %v, disliked = %v", s.Liked, s.Disliked)
	}
	if s.WeightsBefore.Visual != 0.7 {
		t.Errorf("weights_before = %+v", s.WeightsBefore)
	}
	if f.svc.State() != StateIdle {
		t.Errorf("state after submit = %s", f.svc.State())
	}
}

func TestDebounce_EmptyGuard(t *testing.T) {
	f := newFixture()
	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	mustToggle(t, f.svc, "a", domfb.VoteNone)
	f.sched.elapse()

	if n := len(f.sub.submissions()); n != 0 {
		t.Errorf("submissions = %d, want 0", n)
	}
	if f.svc.State() != StateIdle {
		t.Errorf("state = %s", f.svc.State())
	}
	if !reflect.DeepEqual(f.metrics.outcomes, []string{OutcomeSkipped}) {
		t.Errorf("outcomes = %v", f.metrics.outcomes)
	}
}

func TestToggleDuringSubmit_RearmsAfterCompletion(t *testing.T) {
	f := newFixture()
	f.sub.entered = make(chan struct{}, 1)
	f.sub.release = make(chan struct{})

	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	done := make(chan struct{})
	go func() {
		f.sched.elapse()
		close(done)
	}()
	<-f.sub.entered

	if f.svc.State() != StateSubmitting {
		t.Fatalf("state = %s, want submitting", f.svc.State())
	}
	mustToggle(t, f.svc, "b", domfb.VoteDisliked)
	if f.sched.live() != 0 {
		t.Error("no timer may be armed while a request is in flight")
	}

	close(f.sub.release)
	<-done

	if f.svc.State() != StatePendingSubmit {
		t.Fatalf("state after completion = %s, want pending", f.svc.State())
	}

	f.sub.mu.Lock()
	f.sub.entered, f.sub.release = nil, nil
	f.sub.mu.Unlock()
	f.sched.elapse()

	got := f.sub.submissions()
	if len(got) != 2 {
		t.Fatalf("submissions = %d, want 2", len(got))
	}
	if !reflect.DeepEqual(got[1].Liked, []string{"a"}) || !reflect.DeepEqual(got[1].Disliked, []string{"b"}) {
		t.Errorf("second submission = %+v", got[1])
	}
	if f.sub.maxSeen != 1 {
		t.Errorf("max in flight = %d, want 1", f.sub.maxSeen)
	}
}

func TestSubmit_AppliesAdjustedWeights(t *testing.T) {
	f := newFixture()
	after := weights.Weights{Visual: 0.6, Spatial: 0.3, Attr: 0.1}
	f.sub.result = domfb.Result{WeightsAfter: &after}

	var adjusted []weights.Weights
	f.svc.OnAdjust(func(w weights.Weights) { adjusted = append(adjusted, w) })

	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	f.sched.elapse()

	if len(adjusted) != 1 || adjusted[0] != after {
		t.Errorf("adjusted = %+v", adjusted)
	}
}

func TestSubmit_FailureNotifiesWithoutRetry(t *testing.T) {
	f := newFixture()
	f.sub.err = errors.New("connection refused")

	var adjusted int
	f.svc.OnAdjust(func(weights.Weights) { adjusted++ })

	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	f.sched.elapse()

	if len(f.notifier.msgs) != 1 || f.notifier.msgs[0] != notify.Error {
		t.Errorf("notifications = %v", f.notifier.msgs)
	}
	if f.sched.live() != 0 {
		t.Error("failure must not schedule a retry")
	}
	if adjusted != 0 {
		t.Error("failed submission must not adjust weights")
	}
	if f.svc.State() != StateIdle {
		t.Errorf("state = %s", f.svc.State())
	}
	if !reflect.DeepEqual(f.metrics.outcomes, []string{OutcomeFailed}) {
		t.Errorf("outcomes = %v", f.metrics.outcomes)
	}
}

func TestReset_DropsPendingBatch(t *testing.T) {
	f := newFixture()
	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	f.svc.Reset("q2")

	if len(f.svc.Votes()) != 0 {
		t.Errorf("votes = %v", f.svc.Votes())
	}
	if f.svc.QueryID() != "q2" || f.svc.State() != StateIdle {
		t.Errorf("query = %s, state = %s", f.svc.QueryID(), f.svc.State())
	}
	f.sched.elapse()
	if n := len(f.sub.submissions()); n != 0 {
		t.Errorf("submissions = %d, want 0", n)
	}
}

func TestToggle_Validation(t *testing.T) {
	svc := New(&mockSubmitter{}, &fakeScheduler{}, nil, nil, nil, "s", Config{}, zap.NewNop())
	if err := svc.Toggle("a", domfb.VoteLiked); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("toggle before any result set: got %v", err)
	}
	svc.Reset("q")
	if err := svc.Toggle("  ", domfb.VoteLiked); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("blank image id: got %v", err)
	}
}

func TestFlush_SubmitsImmediately(t *testing.T) {
	f := newFixture()
	mustToggle(t, f.svc, "z", domfb.VoteLiked)
	f.svc.Flush()

	if n := len(f.sub.submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
	f.sched.elapse()
	if n := len(f.sub.submissions()); n != 1 {
		t.Errorf("stopped timer fired again: %d submissions", n)
	}
}

func TestClose_StopsPending(t *testing.T) {
	f := newFixture()
	mustToggle(t, f.svc, "a", domfb.VoteLiked)
	f.svc.Close()
	f.sched.elapse()

	if n := len(f.sub.submissions()); n != 0 {
		t.Errorf("submissions after close = %d", n)
	}
}
