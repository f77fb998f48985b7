package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session. Transitions are monotonic:
// ACTIVE -> FINISHED or ACTIVE -> EXPIRED; no transition leaves a terminal
// state.
type Status string

const (
	// StatusActive marks a session that accepts mutating operations.
	StatusActive Status = "ACTIVE"
	// StatusFinished marks a session completed by the user or by covering
	// every step.
	StatusFinished Status = "FINISHED"
	// StatusExpired marks a session reaped by the idle sweep.
	StatusExpired Status = "EXPIRED"
)

// Terminal reports whether the status rejects further mutation.
func (s Status) Terminal() bool { return s == StatusFinished || s == StatusExpired }

// Session is the authoritative record of one guided cooking interaction,
// shared with the external agent via SessionID.
//
// Contract:
//   - SessionID is generated locally (never by the agent) and immutable
//   - OwnerID and Title are immutable after creation
//   - CompletedSteps holds distinct step numbers in [1, TotalSteps] and only
//     ever grows
//   - CurrentStep never exceeds TotalSteps and never regresses through
//     MarkStepCompleted
//   - Every mutating method refreshes LastUsedAt
//
// Session carries no internal locking; stores hand out clones and persist
// with last-writer-wins semantics, and every mutation is idempotent or
// monotonic so duplicate client retries are harmless.
type Session struct {
	SessionID      string    `json:"session_id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	CurrentStep    int       `json:"current_step"`
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps []int     `json:"completed_steps"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	LastUsedAt     time.Time `json:"last_used_at"`
}

// NewSession creates an ACTIVE session for the given owner and recipe
// dimensions, positioned on step one.
func NewSession(sessionID, ownerID, title string, totalSteps int) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:      sessionID,
		OwnerID:        ownerID,
		Title:          title,
		CurrentStep:    1,
		TotalSteps:     totalSteps,
		CompletedSteps: []int{},
		Status:         StatusActive,
		CreatedAt:      now,
		LastUsedAt:     now,
	}
}

// NewID generates a fresh opaque session identifier.
func NewID() string { return uuid.NewString() }

// StepCompleted reports whether the step number is already recorded.
func (s *Session) StepCompleted(step int) bool {
	for _, done := range s.CompletedSteps {
		if done == step {
			return true
		}
	}
	return false
}

// MarkStepCompleted records the step as done. Re-completing a step is a
// no-op, which keeps retried client calls harmless. The session transitions
// to FINISHED once every step is covered; CurrentStep advances only when the
// completed step is exactly CurrentStep, so stale or out-of-order requests
// can neither rewind nor overshoot it, and it is capped at TotalSteps.
func (s *Session) MarkStepCompleted(step int) {
	if !s.StepCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}

	if step == s.CurrentStep && step < s.TotalSteps {
		s.CurrentStep = step + 1
	}

	if len(s.CompletedSteps) == s.TotalSteps {
		s.Status = StatusFinished
	}

	s.Touch()
}

// SyncCurrentStep adopts the agent-reported step position. The agent is
// authoritative for step position, but a value outside [1, TotalSteps] is
// ignored rather than corrupting the record.
func (s *Session) SyncCurrentStep(step int) {
	if step >= 1 && step <= s.TotalSteps {
		s.CurrentStep = step
	}
}

// Finish transitions the session to FINISHED.
func (s *Session) Finish() {
	s.Status = StatusFinished
	s.Touch()
}

// Expire transitions the session to EXPIRED.
func (s *Session) Expire() {
	s.Status = StatusExpired
	s.Touch()
}

// Touch refreshes LastUsedAt, deferring idle expiry.
func (s *Session) Touch() { s.LastUsedAt = time.Now().UTC() }

// Progress returns the floor-rounded completion percentage, zero when the
// recipe has no steps.
func (s *Session) Progress() int {
	if s.TotalSteps == 0 {
		return 0
	}
	return len(s.CompletedSteps) * 100 / s.TotalSteps
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	clone.CompletedSteps = make([]int, len(s.CompletedSteps))
	copy(clone.CompletedSteps, s.CompletedSteps)
	return &clone
}

// SessionStore persists session records. Save is a last-writer-wins upsert
// keyed by SessionID; Create enforces SessionID uniqueness and reports a
// duplicate with ErrConflict. Lookups by unknown id return ErrNotFound.
type SessionStore interface {
	// Create inserts a new session, failing with ErrConflict on a duplicate id.
	Create(ctx context.Context, session *Session) error

	// GetBySessionID returns the session or ErrNotFound.
	GetBySessionID(ctx context.Context, sessionID string) (*Session, error)

	// FindActiveByOwner returns the owner's ACTIVE sessions.
	FindActiveByOwner(ctx context.Context, ownerID string) ([]*Session, error)

	// FindByOwner returns all of the owner's sessions, most recently used first.
	FindByOwner(ctx context.Context, ownerID string) ([]*Session, error)

	// FindIdleBefore returns sessions in the given status whose LastUsedAt
	// precedes the cutoff. Used by the idle sweep.
	FindIdleBefore(ctx context.Context, status Status, cutoff time.Time) ([]*Session, error)

	// Save upserts the session keyed by SessionID.
	Save(ctx context.Context, session *Session) error

	// Delete removes the session if present. It exists for the compensating
	// path of a failed session start and is not part of the public surface.
	Delete(ctx context.Context, sessionID string) error
}
