// Package tasks runs generation requests as background jobs: a JetStream
// work queue feeds a worker, task records live in a NATS KV bucket, and
// callers poll the record for a monotonically increasing progress
// percentage. There is no true cancellation; a started task runs until it
// completes or hits the wall-clock limit imposed on the whole task.
package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/caseforge/caseforge/generate"
	"github.com/caseforge/caseforge/tenancy"
)

// Status represents the lifecycle state of a background task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Result carries what a finished task produced: rendered suggestions for
// preview tasks, persisted case ids when the task committed.
type Result struct {
	Suggestions *generate.Suggestions `json:"suggestions,omitempty"`
	CaseIDs     []string              `json:"case_ids,omitempty"`
}

// Task is one background generation request and its observable state.
type Task struct {
	ID      string         `json:"id"`
	Scope   tenancy.Scope  `json:"scope"`
	StoryID string         `json:"story_id"`
	Input   generate.Input `json:"input"`

	// Commit persists the generated suggestions after rendering; false
	// leaves them in the result for review.
	Commit bool `json:"commit"`

	Status Status `json:"status"`

	// Progress is 0-100 and never decreases; see SetProgress.
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Result *Result `json:"result,omitempty"`
}

// NewTask builds a pending task for one generation request.
func NewTask(scope tenancy.Scope, storyID string, in generate.Input, commit bool) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Scope:     scope,
		StoryID:   storyID,
		Input:     in,
		Commit:    commit,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// SetProgress moves the progress percentage forward. Values below the
// current percentage are ignored so pollers never see progress go
// backwards; values above 100 clamp to 100. The message is updated whenever
// the percentage is accepted.
func (t *Task) SetProgress(percent int, message string) {
	if percent > 100 {
		percent = 100
	}
	if percent < t.Progress {
		return
	}
	t.Progress = percent
	t.Message = message
}

// Finished reports whether the task reached a terminal state.
func (t *Task) Finished() bool {
	return t.Status == StatusComplete || t.Status == StatusFailed
}
