package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 4 * time.Second

const maxActive = 20

// Level classifies a notification.
type Level string

const (
	// Info is a neutral status message.
	Info Level = "info"
	// Error reports a failed network call.
	Error Level = "error"
)

// Notification is a transient, auto-dismissing message.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center keeps the active notifications of one session.
type Center struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items []Notification
}

// New creates a Center. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (c *Center) WithClock(now func() time.Time) *Center {
	c.now = now
	return c
}

// Notify adds a message that expires after the TTL.
func (c *Center) Notify(level Level, msg string) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.pruneLocked(now)
	c.items = append(c.items, n)
	if len(c.items) > maxActive {
		c.items = c.items[len(c.items)-maxActive:]
	}
	return n
}

// Active returns unexpired notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return append([]Notification(nil), c.items...)
}

// Dismiss removes a notification before it expires.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}
