// Package orchestrator implements the session orchestration core. It owns
// the authoritative session record, enforces ownership through the access
// guard on every operation that names a session, proxies step-by-step
// operations to the external conversational agent, and reconciles the
// agent's view of progress back into the local record.
//
// Authority is split deliberately: the agent is authoritative for message
// content and the live step position, the local record for identity,
// ownership, totals and completed-step bookkeeping. Mutations are idempotent
// or monotonic instead of lock-serialized; duplicate client retries of the
// same call converge on the same state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives orchestration diagnostics.
	Logger logging.Logger
}

// Orchestrator coordinates session lifecycle across the local store and the
// external agent. Public methods are safe for concurrent use.
type Orchestrator struct {
	store  core.SessionStore
	agent  core.AgentClient
	guard  *guard.Guard
	logger logging.Logger
}

// New constructs an Orchestrator with optional overrides.
func New(store core.SessionStore, agentClient core.AgentClient, g *guard.Guard, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		store:  store,
		agent:  agentClient,
		guard:  g,
		logger: opts.Logger,
	}
}

// StartResult is the caller-facing outcome of a started session.
type StartResult struct {
	SessionID      string `json:"session_id"`
	TotalSteps     int    `json:"total_steps"`
	WelcomeMessage string `json:"message"`
}

// StatusSnapshot is a read-only view of session progress.
type StatusSnapshot struct {
	SessionID       string      `json:"session_id"`
	Title           string      `json:"title"`
	CurrentStep     int         `json:"current_step"`
	TotalSteps      int         `json:"total_steps"`
	CompletedSteps  []int       `json:"completed_steps"`
	ProgressPercent int         `json:"progress_percent"`
	Status          core.Status `json:"status"`
}

// StartSession validates the recipe, creates the authoritative record and
// registers the session with the agent. The session id is generated here —
// never by the agent — and a store-level id collision is fatal for the
// request, since it indicates a generator bug rather than a retryable race.
//
// If the agent call fails, the just-created record is deleted before the
// error returns, so no session is ever left ACTIVE without an agent-side
// counterpart.
func (o *Orchestrator) StartSession(ctx context.Context, principal string, recipe core.Recipe) (*StartResult, error) {
	ownerID, err := o.guard.ResolveOwner(ctx, principal)
	if err != nil {
		return nil, err
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	sessionID := core.NewID()
	sess := core.NewSession(sessionID, ownerID, recipe.Title, recipe.TotalSteps())

	if err := o.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session record: %w", err)
	}

	greeting, err := o.agent.StartSession(ctx, sessionID, recipe)
	if err != nil {
		// Compensate: the local record must not outlive a failed agent start.
		if delErr := o.store.Delete(ctx, sessionID); delErr != nil {
			o.logger.Error("failed to compensate half-created session session_id=%s err=%v", sessionID, delErr)
		}
		o.logger.Warn("session start failed session_id=%s err=%v", sessionID, err)
		return nil, err
	}

	o.logger.Info("session started session_id=%s total_steps=%d", sessionID, sess.TotalSteps)

	return &StartResult{
		SessionID:      sessionID,
		TotalSteps:     sess.TotalSteps,
		WelcomeMessage: greeting.Message,
	}, nil
}

// GetStatus returns a progress snapshot of the caller's session. Reads are
// permitted on terminal sessions.
func (o *Orchestrator) GetStatus(ctx context.Context, principal, sessionID string) (*StatusSnapshot, error) {
	sess, err := o.ownedSession(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}

	return &StatusSnapshot{
		SessionID:       sess.SessionID,
		Title:           sess.Title,
		CurrentStep:     sess.CurrentStep,
		TotalSteps:      sess.TotalSteps,
		CompletedSteps:  sess.CompletedSteps,
		ProgressPercent: sess.Progress(),
		Status:          sess.Status,
	}, nil
}

// ListSessions returns the caller's sessions, most recently used first, or
// only the ACTIVE ones when activeOnly is set.
func (o *Orchestrator) ListSessions(ctx context.Context, principal string, activeOnly bool) ([]*core.Session, error) {
	ownerID, err := o.guard.ResolveOwner(ctx, principal)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		return o.store.FindActiveByOwner(ctx, ownerID)
	}
	return o.store.FindByOwner(ctx, ownerID)
}

// SendMessage forwards one user turn to the agent and returns the reply
// unchanged. The agent-reported current step, when present, overwrites the
// local step position; everything else in the local record stays local.
func (o *Orchestrator) SendMessage(ctx context.Context, principal string, msg core.ChatMessage) (*core.ChatReply, error) {
	sess, err := o.ownedSession(ctx, principal, msg.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, core.ErrSessionClosed
	}

	reply, err := o.agent.SendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	if reply.SessionStatus.CurrentStep != nil {
		sess.SyncCurrentStep(*reply.SessionStatus.CurrentStep)
	}
	sess.Touch()

	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session after message: %w", err)
	}

	return reply, nil
}

// CompleteStep validates the step locally, reports it to the agent, then
// records it. Re-completing a step is a no-op, and out-of-order completion
// neither rewinds nor overshoots the current step. The session finishes once
// every step is covered.
func (o *Orchestrator) CompleteStep(ctx context.Context, principal, sessionID string, stepNumber int) (*core.StepCompletion, error) {
	sess, err := o.ownedSession(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, core.ErrSessionClosed
	}
	if stepNumber < 1 || stepNumber > sess.TotalSteps {
		return nil, fmt.Errorf("%w: step %d of %d", core.ErrInvalidStep, stepNumber, sess.TotalSteps)
	}

	completion, err := o.agent.CompleteStep(ctx, sessionID, stepNumber)
	if err != nil {
		return nil, err
	}

	sess.MarkStepCompleted(stepNumber)

	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session after step completion: %w", err)
	}

	o.logger.Debug("step completed session_id=%s step=%d status=%s", sessionID, stepNumber, sess.Status)
	return completion, nil
}

// GetHistory returns the agent-held transcript. The local record keeps no
// message history, so this delegates entirely; reads are permitted on
// terminal sessions.
func (o *Orchestrator) GetHistory(ctx context.Context, principal, sessionID string) (*core.ChatHistory, error) {
	if _, err := o.ownedSession(ctx, principal, sessionID); err != nil {
		return nil, err
	}
	return o.agent.FetchHistory(ctx, sessionID)
}

// EndSession closes the session by user intent. The local record finishes on
// agent success and also when the agent reports the session as already gone —
// "ended" is terminal regardless of remote bookkeeping lag. Transport-level
// failures propagate without touching local state.
func (o *Orchestrator) EndSession(ctx context.Context, principal, sessionID string) (*core.SessionSummary, error) {
	sess, err := o.ownedSession(ctx, principal, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, core.ErrSessionClosed
	}

	summary, err := o.agent.EndSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, core.ErrAgentRejected) {
			return nil, err
		}
		// Agent no longer knows the session; end it locally anyway.
		summary = &core.SessionSummary{Message: "session already ended"}
	}

	sess.Finish()
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save ended session: %w", err)
	}

	o.logger.Info("session ended session_id=%s", sessionID)
	return summary, nil
}

// ExpireIdleSessions transitions every ACTIVE session last used before the
// cutoff to EXPIRED and returns how many were reaped. Expiry is a local
// housekeeping decision; the agent side runs its own idle policy and is not
// called.
func (o *Orchestrator) ExpireIdleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	idle, err := o.store.FindIdleBefore(ctx, core.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find idle sessions: %w", err)
	}

	expired := 0
	for _, sess := range idle {
		sess.Expire()
		if err := o.store.Save(ctx, sess); err != nil {
			return expired, fmt.Errorf("expire session %s: %w", sess.SessionID, err)
		}
		expired++
	}

	return expired, nil
}

// ownedSession loads the session and verifies the principal owns it. Local
// validation always happens before any outbound agent call.
func (o *Orchestrator) ownedSession(ctx context.Context, principal, sessionID string) (*core.Session, error) {
	ownerID, err := o.guard.ResolveOwner(ctx, principal)
	if err != nil {
		return nil, err
	}

	sess, err := o.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.guard.Authorize(ownerID, sess); err != nil {
		return nil, err
	}

	return sess, nil
}
