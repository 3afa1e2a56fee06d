package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketTasks is the KV bucket holding task records.
const BucketTasks = "CASEFORGE_TASKS"

// taskTTL expires finished and abandoned task records.
const taskTTL = 24 * time.Hour

// ErrTaskNotFound indicates no task exists under the given id.
var ErrTaskNotFound = errors.New("task not found")

// Store persists task records in a NATS KV bucket. One record per task id;
// the worker writes, pollers read.
type Store struct {
	kv jetstream.KeyValue
}

// NewStore binds to the task bucket, creating it if missing.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	kv, err := js.KeyValue(ctx, BucketTasks)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      BucketTasks,
			Description: "caseforge background generation tasks",
			History:     5,
			TTL:         taskTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create task bucket: %w", err)
		}
	}
	return &Store{kv: kv}, nil
}

// Create stores a new task record. The task keeps the id NewTask assigned.
func (s *Store) Create(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.kv.Create(ctx, t.ID, data); err != nil {
		return fmt.Errorf("store task %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a task record by id.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	var t Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &t, nil
}

// Update replaces a task record. Last write wins; only the worker that owns
// a task writes to it after creation.
func (s *Store) Update(ctx context.Context, t *Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.kv.Put(ctx, t.ID, data); err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// List returns all stored task records. Entries that fail to load are
// skipped rather than failing the listing.
func (s *Store) List(ctx context.Context) ([]*Task, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	out := make([]*Task, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var t Task
		if err := json.Unmarshal(entry.Value(), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}
