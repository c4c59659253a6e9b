package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(WithClock(func() time.Time { return now }))

	_, ok := s.CurrentActorID(ctx)
	assert.False(t, ok)
	assert.False(t, s.IsSessionValid(ctx, "u1"))
	assert.False(t, s.IsSessionValid(ctx, ""))

	s.Grant("u1", time.Hour)
	s.SetCurrent("u1")
	actor, ok := s.CurrentActorID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", actor)
	assert.True(t, s.IsSessionValid(ctx, "u1"))

	now = now.Add(2 * time.Hour)
	assert.False(t, s.IsSessionValid(ctx, "u1"), "expired session")

	s.Grant("u1", time.Hour)
	assert.True(t, s.IsSessionValid(ctx, "u1"))
	s.Revoke("u1")
	assert.False(t, s.IsSessionValid(ctx, "u1"))
}
