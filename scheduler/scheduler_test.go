package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	expired int
	err     error
}

func (r *recordingExpirer) ExpireIdleSessions(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return r.expired, r.err
}

func (r *recordingExpirer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cutoffs)
}

func TestSweeper_CutoffReflectsIdleTimeout(t *testing.T) {
	exp := &recordingExpirer{expired: 2}
	s := New(exp, func(o *Options) { o.IdleTimeout = time.Hour })

	before := time.Now().UTC().Add(-time.Hour)
	s.SweepOnce(context.Background())
	after := time.Now().UTC().Add(-time.Hour)

	require.Equal(t, 1, exp.calls())
	cutoff := exp.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestSweeper_RunSweepsUntilCancelled(t *testing.T) {
	exp := &recordingExpirer{}
	s := New(exp, func(o *Options) {
		o.Interval = 10 * time.Millisecond
		o.IdleTimeout = time.Minute
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return exp.calls() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestSweeper_SurvivesSweepErrors(t *testing.T) {
	exp := &recordingExpirer{err: errors.New("store down")}
	s := New(exp, func(o *Options) { o.Interval = 10 * time.Millisecond })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, exp.calls(), 2, "loop keeps ticking past failures")
}
