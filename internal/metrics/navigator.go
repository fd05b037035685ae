package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Navigator Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "circare",
			Name:      "searches_total",
			Help:      "Searches issued by navigator sessions",
		},
		[]string{"endpoint", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "circare",
			Name:      "search_duration_seconds",
			Help:      "Search round-trip duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	LensChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "circare",
			Name:      "lens_changes_total",
			Help:      "Lens replacements by source",
		},
		[]string{"source"}, // "brush" / "project" / "clear"
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "circare",
			Name:      "feedback_submissions_total",
			Help:      "Feedback submissions by outcome",
		},
		[]string{"outcome"},
	)
)

var navMetricsRegistered bool

// RegisterNavigatorMetrics registers the navigator metrics. Must be called once from main.
func RegisterNavigatorMetrics() {
	if navMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(LensChangesTotal)
	prometheus.MustRegister(FeedbackTotal)
	navMetricsRegistered = true
}

// Navigator records session activity into the package metrics.
type Navigator struct{}

// RecordSearch counts one search and, unless it was cancelled, observes its duration.
func (Navigator) RecordSearch(endpoint, outcome string, d time.Duration) {
	SearchesTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome != "cancelled" {
		SearchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// RecordLensChange counts one lens replacement.
func (Navigator) RecordLensChange(source string) {
	LensChangesTotal.WithLabelValues(source).Inc()
}

// RecordFeedback counts one feedback submission.
func (Navigator) RecordFeedback(outcome string) {
	FeedbackTotal.WithLabelValues(outcome).Inc()
}
