package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Work-queue stream layout.
const (
	StreamName   = "CASEFORGE_GEN"
	SubjectTasks = "caseforge.generate.task"
	ConsumerName = "caseforge-worker"
)

// trigger is the queue message: just the task id, the record in the KV
// bucket carries everything else.
type trigger struct {
	TaskID string `json:"task_id"`
}

// Queue enqueues task ids onto the generation work queue.
type Queue struct {
	js jetstream.JetStream
}

// NewQueue creates a queue over an existing JetStream context.
func NewQueue(js jetstream.JetStream) *Queue {
	return &Queue{js: js}
}

// EnsureStream creates or updates the work-queue stream. Workers and
// enqueuers both call this so either side can start first.
func (q *Queue) EnsureStream(ctx context.Context) error {
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectTasks},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Enqueue publishes one task id for a worker to pick up. The task record
// must already exist in the store.
func (q *Queue) Enqueue(ctx context.Context, taskID string) error {
	data, err := json.Marshal(trigger{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	if _, err := q.js.Publish(ctx, SubjectTasks, data); err != nil {
		return fmt.Errorf("enqueue task %s: %w", taskID, err)
	}
	return nil
}
