package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/circare/internal/config"
	"github.com/kailas-cloud/circare/internal/db"
	dbFile "github.com/kailas-cloud/circare/internal/db/file"
	dbMemory "github.com/kailas-cloud/circare/internal/db/memory"
	dbRedis "github.com/kailas-cloud/circare/internal/db/redis"
	"github.com/kailas-cloud/circare/internal/domain/latent"
	logpkg "github.com/kailas-cloud/circare/internal/logger"
	"github.com/kailas-cloud/circare/internal/metrics"
	sessionrepo "github.com/kailas-cloud/circare/internal/repository/session"
	chiTransport "github.com/kailas-cloud/circare/internal/transport/chi"
	"github.com/kailas-cloud/circare/internal/transport/upstream"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/circare/internal/usecase/health"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
	"github.com/kailas-cloud/circare/internal/version"
	circare "github.com/kailas-cloud/circare/pkg/sdk"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting circare navigator",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Session store ready", zap.String("driver", cfg.Database.Driver))

	client, err := circare.New(cfg.Upstream.BaseURL,
		circare.WithToken(cfg.Upstream.Token),
		circare.WithTimeout(time.Duration(cfg.Upstream.TimeoutSec)*time.Second),
		circare.WithRetries(cfg.Upstream.Retries),
		circare.WithRateLimit(rate.Limit(cfg.Upstream.RateLimit), cfg.Upstream.RateBurst),
		circare.WithUserAgent("circare-bff/"+version.Version),
		circare.WithLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
		circare.WithPrometheus(prometheus.DefaultRegisterer),
	)
	if err != nil {
		logger.Fatal("Failed to create search API client", zap.Error(err))
	}
	api := upstream.New(client, logger)

	// Register navigator metrics explicitly (no init())
	metrics.RegisterNavigatorMetrics()

	viewport, err := latent.NewViewport(
		float64(cfg.Navigator.ViewportWidth), float64(cfg.Navigator.ViewportHeight), latent.DefaultMargin,
	)
	if err != nil {
		logger.Fatal("Invalid viewport", zap.Error(err))
	}

	mgr := navigator.NewManager(navigator.Deps{
		Searcher:  api,
		Submitter: api,
		Points:    api,
		Images:    api,
		Scheduler: feedback.TimeScheduler{},
		Metrics:   metrics.Navigator{},
		Logger:    logger,
	}, navigator.Config{
		SearchTimeout:   time.Duration(cfg.Navigator.SearchTimeoutSec) * time.Second,
		FeedbackDelay:   time.Duration(cfg.Navigator.FeedbackDelayMS) * time.Millisecond,
		FeedbackTimeout: time.Duration(cfg.Navigator.FeedbackTimeoutSec) * time.Second,
		NotifyTTL:       time.Duration(cfg.Navigator.NotifyTTLMS) * time.Millisecond,
		Viewport:        viewport,
	}, sessionrepo.New(store, cfg.SessionTTL()))

	healthSvc := healthuc.New(api, store)

	server := chiTransport.NewServer(mgr, healthSvc, logger).
		WithMaxUpload(int64(cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// in-flight searches are cancelled and every session is saved for resume
	if err := mgr.CloseAll(shutdownCtx); err != nil {
		logger.Error("Failed to persist sessions on shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore creates the session store for the configured driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case db.DriverValkey, db.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		if err := s.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		return s, nil
	case db.DriverFile:
		return dbFile.Open(cfg.Path)
	case db.DriverMemory:
		return dbMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
