package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	dbFile "github.com/kailas-cloud/circare/internal/db/file"
	"github.com/kailas-cloud/circare/internal/domain"
	logpkg "github.com/kailas-cloud/circare/internal/logger"
	sessionrepo "github.com/kailas-cloud/circare/internal/repository/session"
	"github.com/kailas-cloud/circare/internal/transport/upstream"
	"github.com/kailas-cloud/circare/internal/usecase/feedback"
	"github.com/kailas-cloud/circare/internal/usecase/navigator"
	"github.com/kailas-cloud/circare/internal/version"
	circare "github.com/kailas-cloud/circare/pkg/sdk"
)

const (
	defaultAPIURL  = "http://localhost:8000"
	sessionTTL     = 30 * 24 * time.Hour
	envAPIURL      = "CIRCARE_API_URL"
	envAPIToken    = "CIRCARE_API_TOKEN"
	envStatePath   = "CIRCARE_STATE"
	stateFileName  = "state.json"
	stateDirName   = ".circare"
	defaultTimeout = 30 * time.Second
)

// app holds the global flags and the lazily built navigator stack.
type app struct {
	out io.Writer

	apiURL    string
	token     string
	statePath string
	timeout   time.Duration
	retries   int
	asJSON    bool
	verbose   bool

	logger   *zap.Logger
	store    *dbFile.Store
	api      *upstream.Adapter
	mgr      *navigator.Manager
	identity *sessionrepo.Identity
}

func defaultStatePath() string {
	if p := os.Getenv(envStatePath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(stateDirName, stateFileName)
	}
	return filepath.Join(home, stateDirName, stateFileName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// open builds the logger, the state store and the search API client.
func (a *app) open() error {
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger, err := logpkg.NewLogger("local", level)
	if err != nil {
		return err
	}
	a.logger = logger

	store, err := dbFile.Open(a.statePath)
	if err != nil {
		return err
	}
	a.store = store
	a.identity = sessionrepo.NewIdentity(store)

	client, err := circare.New(a.apiURL,
		circare.WithToken(a.token),
		circare.WithTimeout(a.timeout),
		circare.WithRetries(a.retries),
		circare.WithUserAgent("circarectl/"+version.Version),
	)
	if err != nil {
		return err
	}
	a.api = upstream.New(client, logger)

	// Votes are flushed explicitly before the process exits.
	a.mgr = navigator.NewManager(navigator.Deps{
		Searcher:  a.api,
		Submitter: a.api,
		Points:    a.api,
		Images:    a.api,
		Scheduler: feedback.TimeScheduler{},
		Logger:    logger,
	}, navigator.Config{
		SearchTimeout:   a.timeout,
		FeedbackDelay:   time.Minute,
		FeedbackTimeout: a.timeout,
	}, sessionrepo.New(store, sessionTTL))
	return nil
}

// close saves the live session and releases the store.
func (a *app) close() {
	if a.mgr != nil {
		if err := a.mgr.CloseAll(context.Background()); err != nil {
			a.logger.Warn("Failed to save session", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// session resumes the stored session or opens a new one under the stored id.
func (a *app) session(ctx context.Context) (*navigator.Session, error) {
	id, err := a.identity.ID(ctx)
	if err != nil {
		return nil, err
	}
	s, err := a.mgr.Get(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return a.mgr.Create(ctx, id, "")
	}
	return s, err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
