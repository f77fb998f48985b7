// Package scheduler drives periodic housekeeping. Its only job today is the
// idle-session sweep: every tick it asks the orchestrator to expire ACTIVE
// sessions that have not been used within the idle timeout.
package scheduler

import (
	"context"
	"time"

	"github.com/souschef-ai/souschef/logging"
)

const (
	// DefaultIdleTimeout is how long a session may sit untouched before the
	// sweep reaps it.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultInterval is the pause between sweeps.
	DefaultInterval = 5 * time.Minute
)

// Expirer is the slice of the orchestrator the sweeper needs.
type Expirer interface {
	ExpireIdleSessions(ctx context.Context, cutoff time.Time) (int, error)
}

// Options holds configuration overrides passed to New().
type Options struct {
	// IdleTimeout is the inactivity window after which a session expires.
	IdleTimeout time.Duration

	// Interval is the time between sweeps.
	Interval time.Duration

	// Logger receives sweep diagnostics.
	Logger logging.Logger
}

// Sweeper periodically expires idle sessions.
type Sweeper struct {
	expirer     Expirer
	idleTimeout time.Duration
	interval    time.Duration
	logger      logging.Logger
}

// New constructs a Sweeper with optional overrides.
func New(expirer Expirer, optFns ...func(o *Options)) *Sweeper {
	opts := Options{
		IdleTimeout: DefaultIdleTimeout,
		Interval:    DefaultInterval,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Sweeper{
		expirer:     expirer,
		idleTimeout: opts.IdleTimeout,
		interval:    opts.Interval,
		logger:      opts.Logger,
	}
}

// Run sweeps on every tick until the context is cancelled. It always returns
// ctx.Err(), which makes it usable directly under an errgroup. A failed sweep
// is logged and retried on the next tick rather than stopping the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single sweep with the cutoff derived from the
// configured idle timeout.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idleTimeout)

	expired, err := s.expirer.ExpireIdleSessions(ctx, cutoff)
	if err != nil {
		s.logger.Error("idle sweep failed err=%v", err)
		return
	}
	if expired > 0 {
		s.logger.Info("idle sweep expired %d session(s)", expired)
	}
}
