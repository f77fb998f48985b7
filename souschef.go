// Package souschef provides a high-level façade over the session
// orchestration core and its service abstractions (session store, agent
// client, access guard, progress relay). Most applications interact with this
// package by:
//  1. Creating a SousChef via New() (optionally overriding default services)
//  2. Driving cooking sessions (StartSession, SendMessage, CompleteStep, ...)
//  3. Running the idle sweep and subscribing to job progress as needed
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store, a real identity
// verifier and a structured logger.
package souschef

import (
	"context"
	"time"

	"github.com/souschef-ai/souschef/agent"
	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/logging"
	"github.com/souschef-ai/souschef/orchestrator"
	"github.com/souschef-ai/souschef/relay"
	"github.com/souschef-ai/souschef/scheduler"
	"github.com/souschef-ai/souschef/session"
)

// Options configures the SousChef instance.
type Options struct {
	// AgentBaseURL is where the conversational agent listens. Ignored when
	// AgentClient is set.
	AgentBaseURL string

	// AgentTimeout bounds each outbound agent call. Ignored when AgentClient
	// is set.
	AgentTimeout time.Duration

	// IdleTimeout is the inactivity window after which sessions expire.
	IdleTimeout time.Duration

	// SweepInterval is the pause between idle sweeps.
	SweepInterval time.Duration

	// Services (defaults to in-memory / HTTP implementations if not provided)
	SessionStore core.SessionStore
	AgentClient  core.AgentClient
	Verifier     guard.Verifier

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// SousChef is the high-level façade aggregating the orchestrator and its
// collaborators.
type SousChef struct {
	orch    *orchestrator.Orchestrator
	guard   *guard.Guard
	relay   *relay.Relay
	sweeper *scheduler.Sweeper
}

// New creates a SousChef instance with optional overrides. Any unset service
// is initialized with its default implementation.
func New(optFns ...func(o *Options)) *SousChef {
	opts := Options{
		AgentBaseURL:  "http://localhost:8000",
		AgentTimeout:  agent.DefaultTimeout,
		IdleTimeout:   scheduler.DefaultIdleTimeout,
		SweepInterval: scheduler.DefaultInterval,
		SessionStore:  session.NewInMemoryStore(),
		Verifier:      guard.NewStaticVerifier(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.AgentClient == nil {
		opts.AgentClient = agent.NewHTTPClient(opts.AgentBaseURL, func(o *agent.Options) {
			o.Timeout = opts.AgentTimeout
			o.Logger = opts.Logger
		})
	}

	g := guard.New(opts.Verifier)

	orch := orchestrator.New(opts.SessionStore, opts.AgentClient, g, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
	})

	sweeper := scheduler.New(orch, func(o *scheduler.Options) {
		o.IdleTimeout = opts.IdleTimeout
		o.Interval = opts.SweepInterval
		o.Logger = opts.Logger
	})

	return &SousChef{
		orch:    orch,
		guard:   g,
		relay:   relay.New(opts.Logger),
		sweeper: sweeper,
	}
}

// Login verifies a credential pair and returns the owner id.
func (s *SousChef) Login(ctx context.Context, email, password string) (string, error) {
	return s.guard.Login(ctx, email, password)
}

// StartSession starts a guided cooking session for the principal.
func (s *SousChef) StartSession(ctx context.Context, principal string, recipe core.Recipe) (*orchestrator.StartResult, error) {
	return s.orch.StartSession(ctx, principal, recipe)
}

// GetStatus returns a progress snapshot of the principal's session.
func (s *SousChef) GetStatus(ctx context.Context, principal, sessionID string) (*orchestrator.StatusSnapshot, error) {
	return s.orch.GetStatus(ctx, principal, sessionID)
}

// ListSessions returns the principal's sessions, most recently used first.
func (s *SousChef) ListSessions(ctx context.Context, principal string, activeOnly bool) ([]*core.Session, error) {
	return s.orch.ListSessions(ctx, principal, activeOnly)
}

// SendMessage forwards one user turn to the agent.
func (s *SousChef) SendMessage(ctx context.Context, principal string, msg core.ChatMessage) (*core.ChatReply, error) {
	return s.orch.SendMessage(ctx, principal, msg)
}

// CompleteStep records a step as done and reports it to the agent.
func (s *SousChef) CompleteStep(ctx context.Context, principal, sessionID string, stepNumber int) (*core.StepCompletion, error) {
	return s.orch.CompleteStep(ctx, principal, sessionID, stepNumber)
}

// GetHistory returns the agent-held transcript of the session.
func (s *SousChef) GetHistory(ctx context.Context, principal, sessionID string) (*core.ChatHistory, error) {
	return s.orch.GetHistory(ctx, principal, sessionID)
}

// EndSession closes the session by user intent.
func (s *SousChef) EndSession(ctx context.Context, principal, sessionID string) (*core.SessionSummary, error) {
	return s.orch.EndSession(ctx, principal, sessionID)
}

// RunIdleSweep runs the idle-session sweeper until the context is cancelled.
func (s *SousChef) RunIdleSweep(ctx context.Context) error {
	return s.sweeper.Run(ctx)
}

// Orchestrator exposes the underlying orchestrator, e.g. for mounting the
// HTTP server on top of the façade.
func (s *SousChef) Orchestrator() *orchestrator.Orchestrator { return s.orch }

// Guard exposes the access guard.
func (s *SousChef) Guard() *guard.Guard { return s.guard }

// Relay exposes the job progress relay.
func (s *SousChef) Relay() *relay.Relay { return s.relay }
