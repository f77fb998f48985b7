package core

import "strings"

// Terminal job progress statuses. Any other status value is an in-progress
// update; matching is case-insensitive.
const (
	JobStatusComplete = "complete"
	JobStatusFailed   = "failed"
)

// JobProgressEvent is one out-of-band progress update for a long-running job
// (e.g. recipe analysis). Events are transient: they are relayed to whoever
// is observing the job at that moment and never persisted, so delivery is
// best-effort.
type JobProgressEvent struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the job, successfully or not.
// Both outcomes release the observation channel.
func (e JobProgressEvent) Terminal() bool {
	return strings.EqualFold(e.Status, JobStatusComplete) ||
		strings.EqualFold(e.Status, JobStatusFailed)
}
