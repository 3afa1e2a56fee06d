package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/caseforge/caseforge/generate"
	"github.com/caseforge/caseforge/metrics"
)

// Progress stages. Provider batches fill the span between the two marks;
// everything else is fixed checkpoints.
const (
	progressStarted    = 5
	progressBatchFloor = 10
	progressBatchCeil  = 80
	progressRendered   = 85
	progressCommitted  = 95
)

// defaultTaskTimeout is the wall-clock limit on one task when the caller
// configures none.
const defaultTaskTimeout = 10 * time.Minute

// Runner consumes the generation work queue and executes tasks through the
// generation facade. One runner processes one task at a time; concurrency
// inside a task comes from the orchestrator's concurrent batch path.
type Runner struct {
	store   *Store
	queue   *Queue
	service *generate.Service
	timeout time.Duration
	logger  *slog.Logger

	consumer jetstream.Consumer

	// Lifecycle
	running bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	// Counters
	tasksProcessed atomic.Int64
	tasksFailed    atomic.Int64
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTaskTimeout sets the wall-clock limit applied to each whole task.
func WithTaskTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a worker over the task store, queue and facade.
func NewRunner(store *Store, queue *Queue, service *generate.Service, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:   store,
		queue:   queue,
		service: service,
		timeout: defaultTaskTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start ensures the stream and consumer exist and begins consuming. It
// returns once the consume loop is running; Stop shuts it down.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("runner already running")
	}
	r.running = true
	subCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	if err := r.queue.EnsureStream(subCtx); err != nil {
		r.rollbackStart(cancel)
		return err
	}

	stream, err := r.queue.js.Stream(subCtx, StreamName)
	if err != nil {
		r.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: SubjectTasks,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       r.timeout + time.Minute,
		MaxDeliver:    3,
	})
	if err != nil {
		r.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	r.consumer = consumer

	go r.consumeLoop(subCtx)

	r.logger.Info("Task runner started",
		"stream", StreamName,
		"consumer", ConsumerName,
		"task_timeout", r.timeout)
	return nil
}

func (r *Runner) rollbackStart(cancel context.CancelFunc) {
	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.mu.Unlock()
	cancel()
}

// Stop cancels the consume loop and waits for it to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done

	r.logger.Info("Task runner stopped",
		"tasks_processed", r.tasksProcessed.Load(),
		"tasks_failed", r.tasksFailed.Load())
}

// consumeLoop fetches queue messages until the context is cancelled.
func (r *Runner) consumeLoop(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := r.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			r.handleMessage(ctx, msg)
		}
	}
}

// handleMessage runs one queued task. The message is acked in every case
// except shutdown: a task that fails is recorded as failed in its record,
// and redelivering it would rerun a commit that may have half-happened.
func (r *Runner) handleMessage(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			r.logger.Warn("Failed to NAK message during shutdown", "error", err)
		}
		return
	}

	var trig trigger
	if err := json.Unmarshal(msg.Data(), &trig); err != nil {
		r.logger.Error("Failed to parse trigger", "error", err)
		r.ack(msg)
		return
	}

	task, err := r.store.Get(ctx, trig.TaskID)
	if err != nil {
		r.logger.Error("Queued task has no record", "task_id", trig.TaskID, "error", err)
		r.ack(msg)
		return
	}
	if task.Finished() {
		r.logger.Warn("Skipping already finished task", "task_id", task.ID, "status", task.Status)
		r.ack(msg)
		return
	}

	r.tasksProcessed.Add(1)
	r.runTask(ctx, task)
	r.ack(msg)
}

func (r *Runner) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		r.logger.Warn("Failed to ACK message", "error", err)
	}
}

// runTask executes one task under the wall-clock limit and keeps its record
// current. Updates serialize through mu because batch progress callbacks
// arrive from concurrent goroutines.
func (r *Runner) runTask(ctx context.Context, task *Task) {
	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	task.Status = StatusRunning
	task.StartedAt = &now
	task.SetProgress(progressStarted, "loading story")
	r.saveTask(ctx, task)

	r.logger.Info("Running generation task",
		"task_id", task.ID,
		"scope", task.Scope.String(),
		"story_id", task.StoryID,
		"commit", task.Commit)

	var mu sync.Mutex
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		span := progressBatchCeil - progressBatchFloor
		task.SetProgress(progressBatchFloor+span*done/total,
			fmt.Sprintf("provider batch %d of %d complete", done, total))
		r.saveTask(ctx, task)
	}

	sug, err := r.service.PreviewConcurrent(taskCtx, task.Scope, task.StoryID, task.Input, progress)
	if err != nil {
		r.failTask(ctx, task, fmt.Errorf("generate suggestions: %w", err))
		return
	}

	task.SetProgress(progressRendered, "suggestions rendered")
	task.Result = &Result{Suggestions: sug}
	r.saveTask(ctx, task)

	if task.Commit {
		items := make([]generate.ReviewedSuggestion, 0, len(sug.Items))
		for _, item := range sug.Items {
			items = append(items, generate.ReviewedSuggestion{
				Title:       item.Title,
				TestType:    item.TestType,
				FeatureText: item.FeatureText,
				GeneratedAI: task.Input.UseAI && !item.FromFallback,
			})
		}

		tcs, err := r.service.CommitBatch(taskCtx, task.Scope, task.StoryID, items)
		if err != nil {
			r.failTask(ctx, task, fmt.Errorf("commit suggestions: %w", err))
			return
		}

		ids := make([]string, len(tcs))
		for i, tc := range tcs {
			ids[i] = tc.CaseID
		}
		task.Result.CaseIDs = ids
		task.SetProgress(progressCommitted, "test cases persisted")
		r.saveTask(ctx, task)
	}

	done := time.Now()
	task.Status = StatusComplete
	task.CompletedAt = &done
	task.SetProgress(100, "complete")
	r.saveTask(ctx, task)
	metrics.RecordTask(string(StatusComplete))

	r.logger.Info("Generation task complete",
		"task_id", task.ID,
		"provider_empty", sug.ProviderEmpty,
		"suggestions", len(sug.Items),
		"committed", len(task.Result.CaseIDs))
}

func (r *Runner) failTask(ctx context.Context, task *Task, err error) {
	r.tasksFailed.Add(1)

	now := time.Now()
	task.Status = StatusFailed
	task.CompletedAt = &now
	task.Error = err.Error()
	r.saveTask(ctx, task)
	metrics.RecordTask(string(StatusFailed))

	r.logger.Error("Generation task failed",
		"task_id", task.ID,
		"scope", task.Scope.String(),
		"story_id", task.StoryID,
		"error", err)
}

// saveTask writes the record, using the parent context so a task timeout
// does not block recording the timeout itself.
func (r *Runner) saveTask(ctx context.Context, task *Task) {
	if err := r.store.Update(ctx, task); err != nil {
		r.logger.Warn("Failed to update task record", "task_id", task.ID, "error", err)
	}
}
