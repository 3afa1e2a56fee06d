package generate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
)

// fakeSource scripts the per-call behavior of a scenario source. Calls are
// numbered in arrival order; yield decides what each call returns.
type fakeSource struct {
	mu    sync.Mutex
	calls []int

	// yield maps (call ordinal, requested count) to the returned slice.
	// nil yields a full batch.
	yield func(call, count int) []scenario.Scenario

	// sleep delays each call by sleep(call) before returning.
	sleep func(call int) time.Duration
}

func (f *fakeSource) Generate(_ context.Context, _ *asset.Story, count int) []scenario.Scenario {
	f.mu.Lock()
	call := len(f.calls)
	f.calls = append(f.calls, count)
	f.mu.Unlock()

	if f.sleep != nil {
		time.Sleep(f.sleep(call))
	}
	if f.yield != nil {
		return f.yield(call, count)
	}
	return namedScenarios(fmt.Sprintf("call-%d", call), count)
}

func (f *fakeSource) requested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// namedScenarios builds count valid scenarios named prefix-0..count-1.
func namedScenarios(prefix string, count int) []scenario.Scenario {
	out := make([]scenario.Scenario, count)
	for i := range out {
		out[i] = scenario.Scenario{
			Name:  fmt.Sprintf("%s-%d", prefix, i),
			Given: []string{"a precondition"},
			When:  []string{"an action"},
			Then:  []string{"an outcome"},
		}
	}
	return out
}

func batchStory() *asset.Story {
	return &asset.Story{
		TenantID:    "tenant-a",
		WorkspaceID: "PROJ-001",
		StoryID:     "US-4",
		Title:       "User can export reports",
	}
}

func TestBatchSizes(t *testing.T) {
	tests := []struct {
		total, max int
		want       []int
	}{
		{total: 0, max: 10, want: nil},
		{total: 5, max: 10, want: []int{5}},
		{total: 10, max: 10, want: []int{10}},
		{total: 15, max: 10, want: []int{10, 5}},
		{total: 30, max: 10, want: []int{10, 10, 10}},
		{total: 7, max: 3, want: []int{3, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.total, tt.max), func(t *testing.T) {
			got, err := batchSizes(tt.total, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchSizes_Properties(t *testing.T) {
	for total := 1; total <= 50; total++ {
		for max := 1; max <= 12; max++ {
			sizes, err := batchSizes(total, max)
			require.NoError(t, err)

			wantCount := (total + max - 1) / max
			require.Len(t, sizes, wantCount, "total=%d max=%d", total, max)

			sum := 0
			for _, s := range sizes {
				require.LessOrEqual(t, s, max)
				require.Positive(t, s)
				sum += s
			}
			require.Equal(t, total, sum, "sizes must sum to total")
			require.Equal(t, total-(wantCount-1)*max, sizes[len(sizes)-1], "last batch size")
		}
	}
}

func TestBatchSizes_InvalidInput(t *testing.T) {
	_, err := batchSizes(-1, 10)
	require.ErrorIs(t, err, ErrInvalidCount)

	_, err = batchSizes(10, 0)
	require.ErrorIs(t, err, ErrInvalidCount)
}

func TestOrchestratorRun_SingleBatchUnderLimit(t *testing.T) {
	src := &fakeSource{}
	o := NewOrchestrator(src, WithBatchSize(15), WithBatchDelay(0))

	got, err := o.Run(context.Background(), batchStory(), 15)
	require.NoError(t, err)
	assert.Len(t, got, 15)
	assert.Equal(t, []int{15}, src.requested(), "15 needed with batch size 15 is one call")
}

func TestOrchestratorRun_FailedBatchDoesNotAbortOthers(t *testing.T) {
	src := &fakeSource{
		yield: func(call, count int) []scenario.Scenario {
			if call == 1 {
				return nil // middle batch fails
			}
			return namedScenarios(fmt.Sprintf("call-%d", call), count)
		},
	}
	o := NewOrchestrator(src, WithBatchSize(10), WithBatchDelay(0))

	got, err := o.Run(context.Background(), batchStory(), 25)
	require.NoError(t, err, "a failed batch never raises")
	assert.Len(t, got, 15, "two surviving batches of 10 and 5")
	assert.Equal(t, []int{10, 10, 5}, src.requested())

	// Surviving output keeps batch order.
	assert.Equal(t, "call-0-0", got[0].Name)
	assert.Equal(t, "call-2-0", got[10].Name)
}

func TestOrchestratorRun_CancelBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &fakeSource{
		yield: func(call, count int) []scenario.Scenario {
			cancel() // cancelled while the first batch is in flight
			return namedScenarios("first", count)
		},
	}
	o := NewOrchestrator(src, WithBatchSize(5), WithBatchDelay(time.Minute))

	got, err := o.Run(ctx, batchStory(), 20)
	require.NoError(t, err)
	assert.Len(t, got, 5, "returns what was collected before cancellation")
	assert.Equal(t, []int{5}, src.requested())
}

func TestOrchestratorRunConcurrent_ReassemblesInBatchIndexOrder(t *testing.T) {
	// The short last batch finishes well before the full ones. Completion
	// order is therefore the reverse of batch order; the output must still
	// follow batch index, putting the size-1 batch's scenario last.
	src := &fakeSource{
		yield: func(_, count int) []scenario.Scenario {
			time.Sleep(time.Duration(count) * 30 * time.Millisecond)
			return namedScenarios(fmt.Sprintf("size-%d", count), count)
		},
	}
	o := NewOrchestrator(src, WithBatchSize(4))

	got, err := o.RunConcurrent(context.Background(), batchStory(), 9, nil)
	require.NoError(t, err)
	require.Len(t, got, 9)

	assert.Equal(t, "size-4-0", got[0].Name)
	assert.Equal(t, "size-4-0", got[4].Name)
	assert.Equal(t, "size-1-0", got[8].Name, "trailing batch stays last despite finishing first")
}

func TestOrchestratorRunConcurrent_ReportsProgress(t *testing.T) {
	src := &fakeSource{}
	o := NewOrchestrator(src, WithBatchSize(3))

	var mu sync.Mutex
	var seen []int
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	}

	got, err := o.RunConcurrent(context.Background(), batchStory(), 9, progress)
	require.NoError(t, err)
	assert.Len(t, got, 9)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestOrchestratorRunConcurrent_ZeroTotal(t *testing.T) {
	src := &fakeSource{}
	o := NewOrchestrator(src)

	got, err := o.RunConcurrent(context.Background(), batchStory(), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, src.requested())
}
