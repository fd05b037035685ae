package feedback

import (
	"context"
	"time"

	domfb "github.com/kailas-cloud/circare/internal/domain/feedback"
	"github.com/kailas-cloud/circare/internal/domain/weights"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// Submitter posts a batched submission to the feedback endpoint.
type Submitter interface {
	SubmitFeedback(ctx context.Context, s domfb.Submission) (domfb.Result, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(level notify.Level, msg string) notify.Notification
}

// WeightsSource returns the committed weights at submission time.
type WeightsSource func() weights.Weights

// AdjustFunc receives the weights returned by a successful submission.
type AdjustFunc func(w weights.Weights)

// Metrics counts submissions by outcome.
type Metrics interface {
	RecordFeedback(outcome string)
}
