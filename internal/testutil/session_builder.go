package testutil

import (
	"time"

	"github.com/souschef-ai/souschef/core"
)

// SessionBuilder provides a fluent helper for constructing sessions in tests.
// Example:
//
//	sess := NewSessionBuilder().Owner("u1").Steps(3).Completed(1, 2).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type SessionBuilder struct {
	sessionID  string
	ownerID    string
	title      string
	current    int
	total      int
	completed  []int
	status     core.Status
	lastUsedAt time.Time
}

// NewSessionBuilder creates a builder for an ACTIVE three-step session.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		sessionID:  core.NewID(),
		ownerID:    "owner-1",
		title:      "Kimchi Stew",
		current:    1,
		total:      3,
		status:     core.StatusActive,
		lastUsedAt: time.Now().UTC(),
	}
}

// ID overrides the auto-generated session id (chainable).
func (b *SessionBuilder) ID(id string) *SessionBuilder { b.sessionID = id; return b }

// Owner sets the owner id (chainable).
func (b *SessionBuilder) Owner(id string) *SessionBuilder { b.ownerID = id; return b }

// Title sets the recipe title (chainable).
func (b *SessionBuilder) Title(t string) *SessionBuilder { b.title = t; return b }

// Steps sets the total step count (chainable).
func (b *SessionBuilder) Steps(n int) *SessionBuilder { b.total = n; return b }

// On sets the current step (chainable).
func (b *SessionBuilder) On(step int) *SessionBuilder { b.current = step; return b }

// Completed records the given steps as done (chainable).
func (b *SessionBuilder) Completed(steps ...int) *SessionBuilder {
	b.completed = append(b.completed, steps...)
	return b
}

// Status sets the lifecycle status (chainable).
func (b *SessionBuilder) Status(s core.Status) *SessionBuilder { b.status = s; return b }

// LastUsed sets the last-used timestamp, e.g. to backdate a session for idle
// sweep tests (chainable).
func (b *SessionBuilder) LastUsed(t time.Time) *SessionBuilder { b.lastUsedAt = t; return b }

// Build assembles the session.
func (b *SessionBuilder) Build() *core.Session {
	completed := make([]int, len(b.completed))
	copy(completed, b.completed)

	return &core.Session{
		SessionID:      b.sessionID,
		OwnerID:        b.ownerID,
		Title:          b.title,
		CurrentStep:    b.current,
		TotalSteps:     b.total,
		CompletedSteps: completed,
		Status:         b.status,
		CreatedAt:      b.lastUsedAt,
		LastUsedAt:     b.lastUsedAt,
	}
}
