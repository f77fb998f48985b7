// Package relay fans out-of-band job progress events out to whichever client
// is waiting on the job. Events are transient and delivery is best-effort: a
// publish with no registered observer is dropped, because the publisher has
// no way to know whether a subscriber ever attached.
//
// Terminal events (status "complete" or "failed", case-insensitive) release
// the observation channel after the final event is published, so the channel
// is always eventually freed even on failure. Publishing and releasing happen
// under the same lock, which makes the close safe to race with a final
// consumer read: subscribers observe the terminal event, then the close.
package relay

import (
	"sync"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/logging"
)

// subscriberBuffer sizes each observer channel. Slow consumers drop rather
// than block the publisher.
const subscriberBuffer = 16

// Relay is an in-process publish/subscribe hub keyed by job id. It is safe
// for concurrent use.
type Relay struct {
	mu          sync.Mutex
	subscribers map[string][]chan core.JobProgressEvent
	logger      logging.Logger
}

// New constructs an empty relay.
func New(logger logging.Logger) *Relay {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Relay{
		subscribers: make(map[string][]chan core.JobProgressEvent),
		logger:      logger,
	}
}

// Subscribe registers an observer for the job and returns its event channel.
// The channel is closed when the job completes or the subscriber is
// unsubscribed; consumers should range over it.
func (r *Relay) Subscribe(jobID string) <-chan core.JobProgressEvent {
	ch := make(chan core.JobProgressEvent, subscriberBuffer)

	r.mu.Lock()
	r.subscribers[jobID] = append(r.subscribers[jobID], ch)
	r.mu.Unlock()

	r.logger.Debug("relay subscriber attached job_id=%s", jobID)
	return ch
}

// Unsubscribe detaches a previously subscribed channel and closes it. It is
// a no-op for channels the relay no longer tracks.
func (r *Relay) Unsubscribe(jobID string, ch <-chan core.JobProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			r.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	if len(r.subscribers[jobID]) == 0 {
		delete(r.subscribers, jobID)
	}
}

// Publish delivers the event to every observer of the job. A full observer
// buffer or an unmatched job id drops the event.
func (r *Relay) Publish(jobID string, ev core.JobProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(jobID, ev)
}

// Complete tears down the observation channels for the job. Completing an
// unknown job is a no-op.
func (r *Relay) Complete(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeLocked(jobID)
}

// OnJobProgress is the inbound notification entry point: it publishes the
// event and, when the status is terminal, releases the job's channels after
// the final event went out.
func (r *Relay) OnJobProgress(ev core.JobProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.publishLocked(ev.JobID, ev)
	if ev.Terminal() {
		r.completeLocked(ev.JobID)
	}
}

func (r *Relay) publishLocked(jobID string, ev core.JobProgressEvent) {
	subs, ok := r.subscribers[jobID]
	if !ok {
		r.logger.Debug("relay dropped event for unobserved job job_id=%s status=%s", jobID, ev.Status)
		return
	}

	for _, sub := range subs {
		select {
		case sub <- ev:
		default:
			r.logger.Warn("relay dropped event on full buffer job_id=%s status=%s", jobID, ev.Status)
		}
	}
}

func (r *Relay) completeLocked(jobID string) {
	subs, ok := r.subscribers[jobID]
	if !ok {
		return
	}
	delete(r.subscribers, jobID)
	for _, sub := range subs {
		close(sub)
	}
	r.logger.Debug("relay released job channel job_id=%s", jobID)
}
