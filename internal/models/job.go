package models

import (
	"time"

	"github.com/google/uuid"
)

// Job represents one requested scan and its lifecycle
type Job struct {
	ID          string     `json:"id"`
	Target      string     `json:"url"`
	State       JobState   `json:"status"`
	Requester   string     `json:"user_id"`
	Preset      string     `json:"preset,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewJob creates a queued job for target with a fresh identifier.
// An empty requester is recorded as AnonymousRequester.
func NewJob(target, requester, preset string, now time.Time) Job {
	if requester == "" {
		requester = AnonymousRequester
	}
	return Job{
		ID:        uuid.New().String(),
		Target:    target,
		State:     StateQueued,
		Requester: requester,
		Preset:    preset,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkRunning moves the job to running and records the start time.
func (j *Job) MarkRunning(at time.Time) {
	j.State = StateRunning
	j.StartedAt = &at
	j.touch(at)
}

// MarkTerminal moves the job to a terminal state. The completion timestamp is
// recorded only once; errMsg is kept only for failed jobs.
func (j *Job) MarkTerminal(state JobState, at time.Time, errMsg string) {
	j.State = state
	if j.CompletedAt == nil {
		j.CompletedAt = &at
	}
	if state == StateFailed {
		j.Error = errMsg
	}
	j.touch(at)
}

// touch advances UpdatedAt without ever moving it backwards.
func (j *Job) touch(at time.Time) {
	if at.After(j.UpdatedAt) {
		j.UpdatedAt = at
	}
}
