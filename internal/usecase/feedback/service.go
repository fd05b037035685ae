package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// Defaults.
const (
	DefaultDelay   = 800 * time.Millisecond
	DefaultTimeout = 10 * time.Second
)

// Submission outcomes reported to Metrics.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// State is the submission state.
type State string

// States. Idle -> PendingSubmit on a toggle, PendingSubmit -> Submitting when
// the debounce fires, Submitting -> Idle when the request completes.
const (
	StateIdle          State = "idle"
	StatePendingSubmit State = "pending_submit"
	StateSubmitting    State = "submitting"
)

// TimeScheduler schedules with time.AfterFunc.
type TimeScheduler struct{}

// AfterFunc implements Scheduler.
func (TimeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config tunes a Service.
type Config struct {
	Delay   time.Duration
	Timeout time.Duration
}

// Service batches like/dislike toggles and submits them after a quiet period.
// At most one request is in flight: toggles that arrive while submitting are
// recorded and re-arm the debounce once the request completes.
type Service struct {
	submitter Submitter
	sched     Scheduler
	notifier  Notifier
	current   WeightsSource
	metrics   Metrics
	logger    *zap.Logger
	delay     time.Duration
	timeout   time.Duration

	mu        sync.Mutex
	onAdjust  AdjustFunc
	sessionID string
	queryID   string
	votes     domfb.Votes
	state     State
	timer     Timer
	armSeq    uint64
	epoch     uint64
	dirty     bool
	closed    bool
}

// New creates a feedback service for one session. notifier and metrics may be nil.
func New(
	submitter Submitter, sched Scheduler, notifier Notifier, current WeightsSource,
	metrics Metrics, sessionID string, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if sched == nil {
		sched = TimeScheduler{}
	}
	return &Service{
		submitter: submitter,
		sched:     sched,
		notifier:  notifier,
		current:   current,
		metrics:   metrics,
		logger:    logger,
		delay:     cfg.Delay,
		timeout:   cfg.Timeout,
		sessionID: sessionID,
		votes:     domfb.Votes{},
		state:     StateIdle,
	}
}

// OnAdjust registers the callback for server-adjusted weights.
func (s *Service) OnAdjust(fn AdjustFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAdjust = fn
}

// Reset starts a new result set: votes are cleared, any pending submission is
// dropped and later toggles are attributed to queryID.
func (s *Service) Reset(queryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.queryID = queryID
	s.votes = domfb.Votes{}
	s.dirty = false
	s.epoch++
	if s.state != StateSubmitting {
		s.state = StateIdle
	}
}

// Restore reinstates the votes of a persisted session for queryID without
// scheduling a submission.
func (s *Service) Restore(queryID string, votes domfb.Votes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.queryID = queryID
	s.votes = votes.Clone()
	s.dirty = false
	s.epoch++
	if s.state != StateSubmitting {
		s.state = StateIdle
	}
}

// Toggle records a vote and restarts the debounce.
func (s *Service) Toggle(imageID string, v domfb.Vote) error {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryID == "" {
		return fmt.Errorf("%w: no result set to vote on", domain.ErrInvalidRequest)
	}
	s.votes.Set(imageID, v)

	if s.state == StateSubmitting {
		s.dirty = true
		return nil
	}
	s.armLocked()
	return nil
}

// Votes returns a copy of the current votes.
func (s *Service) Votes() domfb.Votes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes.Clone()
}

// State returns the submission state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueryID returns the query the votes belong to.
func (s *Service) QueryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryID
}

// Flush submits a pending batch now instead of waiting for the debounce.
func (s *Service) Flush() {
	s.mu.Lock()
	if s.state != StatePendingSubmit {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	seq := s.armSeq
	s.mu.Unlock()

	s.fire(seq)
}

// Close drops any pending submission.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.epoch++
	s.dirty = false
	s.closed = true
	if s.state == StatePendingSubmit {
		s.state = StateIdle
	}
}

func (s *Service) armLocked() {
	if s.closed {
		return
	}
	s.stopLocked()
	s.armSeq++
	seq := s.armSeq
	s.state = StatePendingSubmit
	s.timer = s.sched.AfterFunc(s.delay, func() { s.fire(seq) })
}

func (s *Service) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Service) fire(seq uint64) {
	s.mu.Lock()
	// a stale timer that lost the race with Stop
	if seq != s.armSeq || s.state != StatePendingSubmit {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	liked, disliked := s.votes.Partition()
	sub := domfb.Submission{
		SessionID: s.sessionID,
		QueryID:   s.queryID,
		Liked:     liked,
		Disliked:  disliked,
	}
	if sub.IsEmpty() {
		s.state = StateIdle
		s.mu.Unlock()
		s.record(OutcomeSkipped)
		return
	}
	if s.current != nil {
		sub.WeightsBefore = s.current()
	} else {
		sub.WeightsBefore = weights.Default()
	}
	s.state = StateSubmitting
	epoch := s.epoch
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	res, err := s.submitter.SubmitFeedback(ctx, sub)
	cancel()

	s.mu.Lock()
	s.state = StateIdle
	// toggles recorded meanwhile belong to the current query, even after a Reset
	if s.dirty {
		s.dirty = false
		s.armLocked()
	}
	adjust := s.onAdjust
	s.mu.Unlock()

	if err != nil {
		s.record(OutcomeFailed)
		s.logger.Warn("Feedback submission failed",
			zap.String("query_id", sub.QueryID),
			zap.Int("liked", len(sub.Liked)),
			zap.Int("disliked", len(sub.Disliked)),
			zap.Error(err),
		)
		if s.notifier != nil {
			s.notifier.Notify(notify.Error, "Feedback could not be sent")
		}
		return
	}

	s.record(OutcomeSent)
	s.logger.Info("Feedback submitted",
		zap.String("query_id", sub.QueryID),
		zap.Int("liked", len(sub.Liked)),
		zap.Int("disliked", len(sub.Disliked)),
	)
	if res.WeightsAfter != nil && adjust != nil && epoch == s.currentEpoch() {
		adjust(*res.WeightsAfter)
	}
}

func (s *Service) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordFeedback(outcome)
	}
}
