// Package identity provides the identity accessor consumed by the
// onboarding saga.
package identity

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Accessor reports who is acting and whether their session is usable.
type Accessor interface {
	// CurrentActorID returns the signed-in actor, if any.
	CurrentActorID(ctx context.Context) (string, bool)

	// IsSessionValid reports whether actorID holds an unexpired session.
	IsSessionValid(ctx context.Context, actorID string) bool
}

// Sessions is an in-process session table. It is safe for concurrent use.
type Sessions struct {
	sessions *xsync.MapOf[string, time.Time]
	now      func() time.Time

	mu      sync.RWMutex
	current string
}

// Option configures Sessions.
type Option func(*Sessions)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sessions) {
		s.now = now
	}
}

// NewSessions creates an empty session table.
func NewSessions(opts ...Option) *Sessions {
	s := &Sessions{
		sessions: xsync.NewMapOf[string, time.Time](),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant opens (or extends) a session for actorID lasting ttl.
func (s *Sessions) Grant(actorID string, ttl time.Duration) {
	s.sessions.Store(actorID, s.now().Add(ttl))
}

// Revoke ends the actor's session.
func (s *Sessions) Revoke(actorID string) {
	s.sessions.Delete(actorID)
}

// SetCurrent marks actorID as the signed-in actor.
func (s *Sessions) SetCurrent(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = actorID
}

// CurrentActorID implements Accessor.
func (s *Sessions) CurrentActorID(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != ""
}

// IsSessionValid implements Accessor.
func (s *Sessions) IsSessionValid(_ context.Context, actorID string) bool {
	if actorID == "" {
		return false
	}
	expires, ok := s.sessions.Load(actorID)
	if !ok {
		return false
	}
	return s.now().Before(expires)
}
