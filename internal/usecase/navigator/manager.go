package navigator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/circare/internal/domain"
	domsess "github.com/kailas-cloud/circare/internal/domain/session"
	"github.com/kailas-cloud/circare/internal/usecase/notify"
)

// Manager owns the live sessions and their persistence.
type Manager struct {
	deps   Deps
	cfg    Config
	repo   Repository
	logger *zap.Logger
	newID  func() string
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. repo may be nil, in which case
// sessions live only in memory. Latent points are fetched once and shared.
func NewManager(deps Deps, cfg Config, repo Repository) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Points != nil {
		deps.Points = NewCachedPoints(deps.Points)
	}
	return &Manager{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		repo:     repo,
		logger:   deps.Logger,
		newID:    uuid.NewString,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session. An empty id generates a new one; an id that is
// already live returns that session. query is the initial URL query string.
func (m *Manager) Create(ctx context.Context, id, query string) (*Session, error) {
	if id == "" {
		id = m.newID()
	}
	if err := domsess.ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newSession(id, query, m.deps, m.cfg, m.now)
	m.sessions[id] = s
	m.mu.Unlock()

	m.loadPoints(ctx, s)
	if err := m.Persist(ctx, s); err != nil {
		m.logger.Warn("Failed to persist new session", zap.String("session_id", id), zap.Error(err))
	}
	m.logger.Info("Session created", zap.String("session_id", id), zap.String("phase", string(s.Phase())))
	return s, nil
}

// Get returns a live session, rebuilding it from the repository if needed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	if m.repo == nil {
		return nil, domain.ErrSessionNotFound
	}
	snap, err := m.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// another request may have restored it meanwhile
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newSession(id, snap.Query, m.deps, m.cfg, m.now)
	s.restore(snap)
	m.sessions[id] = s
	m.mu.Unlock()

	m.loadPoints(ctx, s)
	m.logger.Info("Session restored", zap.String("session_id", id))
	return s, nil
}

// Persist saves a session snapshot. It is a no-op without a repository.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if m.repo == nil {
		return nil
	}
	if err := m.repo.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Close persists and closes a live session. The snapshot stays in the
// repository so the session can be resumed.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Close()
	return m.Persist(ctx, s)
}

// Delete closes a session and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	if m.repo == nil {
		if !ok {
			return domain.ErrSessionNotFound
		}
		return nil
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns the ids of live and persisted sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	m.mu.Lock()
	for id := range m.sessions {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.repo != nil {
		ids, err := m.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// CloseAll closes every live session, persisting each. Errors are joined.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range live {
		s.Close()
		if err := m.Persist(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadPoints fetches the latent points for a new session. A failure leaves
// the map in its error state; searches still work.
func (m *Manager) loadPoints(ctx context.Context, s *Session) {
	if m.deps.Points == nil {
		return
	}
	if err := s.Lens().Load(ctx); err != nil {
		m.logger.Warn("Latent points unavailable", zap.String("session_id", s.ID()), zap.Error(err))
		s.Notifications().Notify(notify.Error, "Latent map unavailable")
	}
}
