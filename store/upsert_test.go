package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

func TestUpsertStory_UpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)

	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	first := &asset.Story{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		StoryID:     "US-1",
		Title:       "original title",
		Criteria: asset.CriterionList{
			{Text: "logs in with valid credentials", Done: false},
		},
		CreatedAt: created,
	}
	require.NoError(t, s.UpsertStory(ctx, first))
	rowID := first.ID
	require.NotZero(t, rowID)

	// Re-import with the same composite key replaces content in place.
	second := &asset.Story{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		StoryID:     "US-1",
		Title:       "reworded title",
		Description: "now with context",
		Criteria: asset.CriterionList{
			{Text: "logs in with valid credentials", Done: true},
			{Text: "locks out after five failures", Done: false},
		},
	}
	require.NoError(t, s.UpsertStory(ctx, second))

	got, err := s.GetStory(ctx, scope, "US-1")
	require.NoError(t, err)
	assert.Equal(t, rowID, got.ID, "surrogate id must survive upsert")
	assert.Equal(t, created, got.CreatedAt.UTC(), "creation time must survive upsert")
	assert.Equal(t, "reworded title", got.Title)
	require.Len(t, got.Criteria, 2)
	assert.InDelta(t, 50.0, got.CompletionPercentage(), 0.001)

	n, err := s.CountStories(ctx, scope)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "upsert must not create a second row")
}

func TestUpsertStory_MissingWorkspaceRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertStory(context.Background(), &asset.Story{
		TenantID:    "tenant-a",
		WorkspaceID: "PROJ-404",
		StoryID:     "US-1",
		Title:       "orphan",
	})
	assert.ErrorIs(t, err, ErrReferenceViolation)
}

func TestUpsertTestCase_UpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)
	seedStory(t, s, scope, "US-1", "login")

	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tc := &asset.TestCase{
		TenantID:     scope.TenantID,
		WorkspaceID:  scope.WorkspaceID,
		CaseID:       "TC-US-1-001",
		StoryID:      "US-1",
		Title:        "first pass",
		TestType:     asset.TestTypeFunctional,
		ScenarioText: "Feature: v1",
		Status:       asset.CaseStatusPending,
		CreatedAt:    created,
	}
	require.NoError(t, s.UpsertTestCase(ctx, tc))
	rowID := tc.ID

	regenerated := &asset.TestCase{
		TenantID:      scope.TenantID,
		WorkspaceID:   scope.WorkspaceID,
		CaseID:        "TC-US-1-001",
		StoryID:       "US-1",
		Title:         "regenerated",
		TestType:      asset.TestTypeAPI,
		ScenarioText:  "Feature: v2",
		GeneratedByAI: true,
	}
	require.NoError(t, s.UpsertTestCase(ctx, regenerated))

	got, err := s.GetTestCase(ctx, scope, "TC-US-1-001")
	require.NoError(t, err)
	assert.Equal(t, rowID, got.ID)
	assert.Equal(t, created, got.CreatedAt.UTC())
	assert.Equal(t, "Feature: v2", got.ScenarioText)
	assert.Equal(t, asset.TestTypeAPI, got.TestType)
	assert.True(t, got.GeneratedByAI)
	assert.Equal(t, asset.CaseStatusPending, got.Status, "regeneration keeps the previous status")

	cases, err := s.ListTestCasesForStory(ctx, scope, "US-1")
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

func TestUpsertTestCase_CrossScopeStoryRejected(t *testing.T) {
	// The story exists, but in another workspace of the same tenant. The
	// composite reference must not resolve.
	s := newTestStore(t)
	ctx := context.Background()

	other := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-002"}
	seedWorkspace(t, s, other)
	seedWorkspace(t, s, scope)
	seedStory(t, s, other, "US-1", "lives in PROJ-001")

	err := s.UpsertTestCase(ctx, &asset.TestCase{
		TenantID:    scope.TenantID,
		WorkspaceID: scope.WorkspaceID,
		CaseID:      "TC-US-1-001",
		StoryID:     "US-1",
		Title:       "points across workspaces",
	})
	assert.ErrorIs(t, err, ErrReferenceViolation)

	_, err = s.GetTestCase(ctx, scope, "TC-US-1-001")
	assert.ErrorIs(t, err, ErrNotFound, "rejected write must leave no row")
}

func TestUpsertTestCases_AllOrNone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)
	seedStory(t, s, scope, "US-1", "login")

	batch := []*asset.TestCase{
		{
			TenantID:    scope.TenantID,
			WorkspaceID: scope.WorkspaceID,
			CaseID:      "TC-US-1-001",
			StoryID:     "US-1",
			Title:       "valid",
		},
		{
			TenantID:    scope.TenantID,
			WorkspaceID: scope.WorkspaceID,
			CaseID:      "TC-US-9-001",
			StoryID:     "US-9", // does not exist
			Title:       "invalid reference",
		},
	}

	err := s.UpsertTestCases(ctx, batch)
	assert.ErrorIs(t, err, ErrReferenceViolation)

	// The valid first row must have been rolled back with the batch.
	cases, err := s.ListTestCases(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestUpsertTestCases_BatchCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)
	seedStory(t, s, scope, "US-1", "login")

	batch := []*asset.TestCase{
		{TenantID: scope.TenantID, WorkspaceID: scope.WorkspaceID, CaseID: "TC-US-1-001", StoryID: "US-1", Title: "a"},
		{TenantID: scope.TenantID, WorkspaceID: scope.WorkspaceID, CaseID: "TC-US-1-002", StoryID: "US-1", Title: "b"},
		{TenantID: scope.TenantID, WorkspaceID: scope.WorkspaceID, CaseID: "TC-US-1-003", StoryID: "US-1", Title: "c"},
	}
	require.NoError(t, s.UpsertTestCases(ctx, batch))

	n, err := s.CountTestCasesForStory(ctx, scope, "US-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	exists, err := s.TestCaseExists(ctx, scope, "TC-US-1-002")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.TestCaseExists(ctx, scope, "TC-US-1-004")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateTestCaseStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)
	seedStory(t, s, scope, "US-1", "login")
	seedTestCase(t, s, scope, "TC-US-1-001", "US-1")

	require.NoError(t, s.UpdateTestCaseStatus(ctx, scope, "TC-US-1-001", asset.CaseStatusBlocked))
	got, err := s.GetTestCase(ctx, scope, "TC-US-1-001")
	require.NoError(t, err)
	assert.Equal(t, asset.CaseStatusBlocked, got.Status)

	err = s.UpdateTestCaseStatus(ctx, scope, "TC-US-1-404", asset.CaseStatusPassed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTestCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := tenancy.Scope{TenantID: "tenant-a", WorkspaceID: "PROJ-001"}
	seedWorkspace(t, s, scope)
	seedStory(t, s, scope, "US-1", "login")
	seedTestCase(t, s, scope, "TC-US-1-001", "US-1")

	require.NoError(t, s.DeleteTestCase(ctx, scope, "TC-US-1-001"))
	_, err := s.GetTestCase(ctx, scope, "TC-US-1-001")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteTestCase(ctx, scope, "TC-US-1-001")
	assert.ErrorIs(t, err, ErrNotFound)
}
