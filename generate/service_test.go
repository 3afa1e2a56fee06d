package generate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
	"github.com/caseforge/caseforge/store"
	"github.com/caseforge/caseforge/tenancy"
)

func newTestService(t *testing.T, src ScenarioSource) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, ":memory:", store.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, st.AutoMigrate())
	t.Cleanup(func() { _ = st.Close() })

	if src == nil {
		src = &fakeSource{}
	}
	svc := NewService(st, NewOrchestrator(src, WithBatchSize(10), WithBatchDelay(0)))
	return svc, st
}

func seedScopedStory(t *testing.T, st *store.Store, scope tenancy.Scope, storyID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateWorkspace(ctx, &asset.Workspace{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		Name:        "workspace " + scope.WorkspaceID,
	}))
	require.NoError(t, st.UpsertStory(ctx, &asset.Story{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		StoryID:     storyID,
		Title:       "User can reset their password",
		Description: "A registered user requests a reset link by email.",
	}))
}

func TestPreview_AIPathDistributesEvenly(t *testing.T) {
	src := &fakeSource{}
	svc, st := newTestService(t, src)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	got, err := svc.Preview(context.Background(), scope, "US-7", Input{
		NumTestCases:     5,
		ScenariosPerCase: 3,
		TestTypes:        []asset.TestType{asset.TestTypeFunctional, asset.TestTypeUI},
		UseAI:            true,
	})
	require.NoError(t, err)

	// 5*3 = 15 needed, batch size 10: two provider calls of 10 and 5.
	assert.Equal(t, []int{10, 5}, src.requested())

	require.Len(t, got.Items, 5)
	assert.False(t, got.ProviderEmpty)
	for i, item := range got.Items {
		assert.False(t, item.FromFallback, "item %d", i)
		assert.NotEmpty(t, item.FeatureText)
	}
	assert.Equal(t, asset.TestTypeFunctional, got.Items[0].TestType)
	assert.Equal(t, asset.TestTypeUI, got.Items[1].TestType)
}

func TestPreview_NoAINeverTouchesProvider(t *testing.T) {
	src := &fakeSource{}
	svc, st := newTestService(t, src)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	got, err := svc.Preview(context.Background(), scope, "US-7", Input{
		NumTestCases:     3,
		ScenariosPerCase: 2,
		UseAI:            false,
	})
	require.NoError(t, err)

	assert.Empty(t, src.requested(), "generation disabled must not call the provider")
	assert.False(t, got.ProviderEmpty, "no warning when AI was never requested")
	require.Len(t, got.Items, 3)
	for _, item := range got.Items {
		assert.True(t, item.FromFallback)
		assert.NotEmpty(t, item.FeatureText, "fallback keeps every body non-empty")
	}
}

func TestPreview_ProviderEmptySetsWarningAndFallsBack(t *testing.T) {
	src := &fakeSource{
		yield: func(int, int) []scenario.Scenario { return nil },
	}
	svc, st := newTestService(t, src)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	got, err := svc.Preview(context.Background(), scope, "US-7", Input{
		NumTestCases:     2,
		ScenariosPerCase: 2,
		UseAI:            true,
	})
	require.NoError(t, err, "provider trouble never hard-fails a preview")

	assert.True(t, got.ProviderEmpty)
	require.Len(t, got.Items, 2)
	for _, item := range got.Items {
		assert.True(t, item.FromFallback)
		assert.NotEmpty(t, item.FeatureText)
	}
}

func TestPreview_UnknownStory(t *testing.T) {
	svc, st := newTestService(t, nil)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	_, err := svc.Preview(context.Background(), scope, "US-404", Input{
		NumTestCases:     1,
		ScenariosPerCase: 1,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPreview_InvalidInput(t *testing.T) {
	svc, st := newTestService(t, nil)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	_, err := svc.Preview(context.Background(), scope, "US-7", Input{
		NumTestCases:     0,
		ScenariosPerCase: 3,
	})
	require.ErrorIs(t, err, ErrInvalidCount)

	_, err = svc.Preview(context.Background(), scope, "US-7", Input{
		NumTestCases:     2,
		ScenariosPerCase: 99,
	})
	require.ErrorIs(t, err, ErrInvalidCount)
}

func TestCommitSingle_Idempotent(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	in := Input{NumTestCases: 1, ScenariosPerCase: 2, UseAI: false}

	first, err := svc.CommitSingle(ctx, scope, "US-7", in)
	require.NoError(t, err)
	assert.Equal(t, "TC-US-7-001", first.CaseID)
	firstCreated := first.CreatedAt

	second, err := svc.CommitSingle(ctx, scope, "US-7", in)
	require.NoError(t, err)
	assert.Equal(t, "TC-US-7-001", second.CaseID)
	assert.Equal(t, first.ID, second.ID, "second commit updates the same row")
	assert.WithinDuration(t, firstCreated, second.CreatedAt, time.Second, "creation time survives the upsert")

	n, err := st.CountTestCasesForStory(ctx, scope, "US-7")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "exactly one row after two commits")
}

func TestCommitBatch_IDsFromOneSiblingCount(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	// Two pre-existing siblings.
	for _, id := range []string{"TC-US-7-001", "TC-US-7-002"} {
		require.NoError(t, st.UpsertTestCase(ctx, &asset.TestCase{
			TenantID:    scope.TenantID,
			WorkspaceID: scope.WorkspaceID,
			CaseID:      id,
			StoryID:     "US-7",
			Title:       "existing " + id,
		}))
	}

	items := []ReviewedSuggestion{
		{Title: "first reviewed", TestType: asset.TestTypeFunctional, FeatureText: "Feature: a\n"},
		{Title: "second reviewed", TestType: asset.TestTypeUI, FeatureText: "Feature: b\n"},
		{Title: "third reviewed", TestType: asset.TestTypeAPI, FeatureText: "Feature: c\n"},
	}

	got, err := svc.CommitBatch(ctx, scope, "US-7", items)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "TC-US-7-003", got[0].CaseID)
	assert.Equal(t, "TC-US-7-004", got[1].CaseID)
	assert.Equal(t, "TC-US-7-005", got[2].CaseID)

	n, err := st.CountTestCasesForStory(ctx, scope, "US-7")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestCommitBatch_SkipsTakenCandidate(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	// One sibling holding a high id: count says 1, but -002 is taken.
	require.NoError(t, st.UpsertTestCase(ctx, &asset.TestCase{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		CaseID:      "TC-US-7-002",
		StoryID:     "US-7",
		Title:       "manually numbered",
	}))

	got, err := svc.CommitBatch(ctx, scope, "US-7", []ReviewedSuggestion{
		{Title: "reviewed", FeatureText: "Feature: a\n"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TC-US-7-003", got[0].CaseID, "allocation retries past the taken candidate")
}

func TestCommitBatch_MalformedItemAbortsWholeBatch(t *testing.T) {
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	items := []ReviewedSuggestion{
		{Title: "fine", FeatureText: "Feature: a\n"},
		{Title: "also fine", FeatureText: "Feature: b\n"},
		{Title: "   ", FeatureText: "Feature: c\n"}, // blank title
	}

	_, err := svc.CommitBatch(ctx, scope, "US-7", items)
	var batchErr *BatchItemError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Index)

	n, err := st.CountTestCasesForStory(ctx, scope, "US-7")
	require.NoError(t, err)
	assert.Zero(t, n, "no partial commit")
}

func TestCommitBatch_UnknownStory(t *testing.T) {
	svc, st := newTestService(t, nil)
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scope, "US-7")

	_, err := svc.CommitBatch(context.Background(), scope, "US-404", []ReviewedSuggestion{
		{Title: "reviewed", FeatureText: "Feature: a\n"},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommitBatch_TenantIsolation(t *testing.T) {
	// Identical literal ids in two tenants never cross: committing into
	// tenant A counts only A's siblings.
	svc, st := newTestService(t, nil)
	ctx := context.Background()
	scopeA := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	scopeB := tenancy.Scope{TenantID: "tenant-b", WorkspaceID: "PROJ-001"}
	seedScopedStory(t, st, scopeA, "US-1")
	seedScopedStory(t, st, scopeB, "US-1")

	require.NoError(t, st.UpsertTestCase(ctx, &asset.TestCase{
		TenantID:    scopeB.TenantID,
		WorkspaceID: scopeB.WorkspaceID,
		CaseID:      "TC-US-1-001",
		StoryID:     "US-1",
		Title:       "tenant B's case",
	}))

	got, err := svc.CommitBatch(ctx, scopeA, "US-1", []ReviewedSuggestion{
		{Title: "tenant A's case", FeatureText: "Feature: a\n"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TC-US-1-001", got[0].CaseID, "B's identical id does not shadow A's sequence")
}
