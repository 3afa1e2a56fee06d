// Package generate composes the generation pipeline: batched provider
// orchestration with partial-failure tolerance, scenario distribution across
// test cases, deterministic fallback templates, feature-text rendering, and
// the preview/commit facade on top of the store.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/metrics"
	"github.com/caseforge/caseforge/scenario"
)

// ErrInvalidCount reports a caller-side precondition failure: a negative
// scenario total or a non-positive batch size or case count.
var ErrInvalidCount = errors.New("invalid scenario count")

// Orchestrator defaults.
const (
	defaultBatchSize  = 10
	defaultBatchDelay = 500 * time.Millisecond
)

// ScenarioSource produces scenarios for a story. Implementations are total:
// provider faults yield fewer scenarios than requested, never an error.
// *scenario.Generator is the production implementation.
type ScenarioSource interface {
	Generate(ctx context.Context, story *asset.Story, count int) []scenario.Scenario
}

// batchSizes splits total into ordered batch request sizes of at most max.
// Batch i requests min(max, total-i*max), so the sizes always sum to total.
func batchSizes(total, max int) ([]int, error) {
	if total < 0 || max <= 0 {
		return nil, fmt.Errorf("%w: total=%d max=%d", ErrInvalidCount, total, max)
	}
	if total == 0 {
		return nil, nil
	}

	count := (total + max - 1) / max
	sizes := make([]int, count)
	for i := range sizes {
		size := total - i*max
		if size > max {
			size = max
		}
		sizes[i] = size
	}
	return sizes, nil
}

// Orchestrator splits one scenario request into bounded batches and runs
// them against a ScenarioSource. Batches are independent: a failing or empty
// batch contributes zero scenarios and never aborts the others. The result
// is the concatenation of batch outputs in batch-index order, so its length
// is bounded by the requested total but may be anything down to zero.
type Orchestrator struct {
	source    ScenarioSource
	batchSize int
	delay     time.Duration
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithBatchSize caps how many scenarios one provider call may request.
func WithBatchSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between sequential batches.
func WithBatchDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an orchestrator over the given source.
func NewOrchestrator(source ScenarioSource, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		source:    source,
		batchSize: defaultBatchSize,
		delay:     defaultBatchDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run requests total scenarios in sequential batches with an inter-batch
// delay as rate-limit courtesy toward the provider. Cancelling the context
// stops before the next batch and returns what was collected so far; only
// an invalid total is an error.
func (o *Orchestrator) Run(ctx context.Context, story *asset.Story, total int) ([]scenario.Scenario, error) {
	sizes, err := batchSizes(total, o.batchSize)
	if err != nil {
		return nil, err
	}

	var out []scenario.Scenario
	for i, size := range sizes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return out, nil
			case <-time.After(o.delay):
			}
		}

		got := o.source.Generate(ctx, story, size)
		o.observeBatch(story, i, len(sizes), size, len(got))
		out = append(out, got...)
	}
	return out, nil
}

// RunConcurrent issues all batches at once and reassembles the results in
// batch-index order, not completion order. The optional progress callback
// receives (completed, total) batch counts as batches finish.
func (o *Orchestrator) RunConcurrent(ctx context.Context, story *asset.Story, total int, progress func(done, total int)) ([]scenario.Scenario, error) {
	sizes, err := batchSizes(total, o.batchSize)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, nil
	}

	results := make([][]scenario.Scenario, len(sizes))
	var done atomic.Int32
	var wg sync.WaitGroup

	for i, size := range sizes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := o.source.Generate(ctx, story, size)
			o.observeBatch(story, i, len(sizes), size, len(got))
			results[i] = got
			if progress != nil {
				progress(int(done.Add(1)), len(sizes))
			}
		}()
	}
	wg.Wait()

	var out []scenario.Scenario
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (o *Orchestrator) observeBatch(story *asset.Story, index, count, requested, got int) {
	outcome := metrics.OutcomeComplete
	switch {
	case got == 0:
		outcome = metrics.OutcomeEmpty
	case got < requested:
		outcome = metrics.OutcomePartial
	}
	metrics.RecordBatch(outcome)

	if got < requested {
		o.logger.Warn("Scenario batch came back short",
			"story_id", story.StoryID,
			"batch", index+1,
			"batches", count,
			"requested", requested,
			"got", got)
		return
	}
	o.logger.Debug("Scenario batch complete",
		"story_id", story.StoryID,
		"batch", index+1,
		"batches", count,
		"got", got)
}
