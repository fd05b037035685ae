package circare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "circare",
			Subsystem: "sdk",
			Name:      "requests_total",
			Help:      "Search API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "circare",
			Subsystem: "sdk",
			Name:      "request_duration_seconds",
			Help:      "Search API call duration in seconds, retries included.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one, so two
// clients may share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("circare: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("circare: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// outcome classifies an error for the metrics label.
func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &apiErr) && apiErr.Status < 500:
		return "client_error"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	}
	return "error"
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, outcome(err)).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		attrs := []any{"op", op, "duration", dur, "error", err}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.Status)
		}
		o.logger.Warn("search api call failed", attrs...)
		return
	}
	o.logger.Debug("search api call completed", "op", op, "duration", dur)
}
