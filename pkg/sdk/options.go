package circare

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	token      string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	userAgent  string

	rateLimit rate.Limit
	burst     int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithRetries sets how many times an idempotent GET is retried. Default: 3.
func WithRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.retries = n
	})
}

// WithRateLimit throttles outgoing requests on the client side.
// Unlimited by default.
func WithRateLimit(r rate.Limit, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rateLimit = r
		c.burst = burst
	})
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return optionFunc(func(c *clientConfig) {
		c.userAgent = ua
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
