package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/metrics"
	"github.com/caseforge/caseforge/scenario"
	"github.com/caseforge/caseforge/seqid"
	"github.com/caseforge/caseforge/store"
	"github.com/caseforge/caseforge/tenancy"
)

// BatchItemError reports the first malformed item in a batch commit. The
// whole batch is rejected; nothing before or after the index is persisted.
type BatchItemError struct {
	Index int
	Err   error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("suggestion %d invalid: %v", e.Index, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }

// Input bounds for one generation request. The transport collaborator range
// checks before calling; the facade re-checks so it stays safe standalone.
const (
	MaxTestCases        = 10
	MaxScenariosPerCase = 10
)

// Input describes one generation request.
type Input struct {
	// NumTestCases is how many test cases to produce, 1-10.
	NumTestCases int

	// ScenariosPerCase is how many scenarios each case gets, 1-10.
	ScenariosPerCase int

	// TestTypes cycles across the produced cases. Empty means functional.
	TestTypes []asset.TestType

	// UseAI requests provider-backed generation. False skips the provider
	// entirely and synthesizes every scenario from fallback templates.
	UseAI bool
}

// Validate checks the request bounds.
func (in Input) Validate() error {
	if in.NumTestCases < 1 || in.NumTestCases > MaxTestCases {
		return fmt.Errorf("%w: num_test_cases=%d must be 1-%d", ErrInvalidCount, in.NumTestCases, MaxTestCases)
	}
	if in.ScenariosPerCase < 1 || in.ScenariosPerCase > MaxScenariosPerCase {
		return fmt.Errorf("%w: scenarios_per_case=%d must be 1-%d", ErrInvalidCount, in.ScenariosPerCase, MaxScenariosPerCase)
	}
	return nil
}

// Suggestion is one rendered test-case candidate, not yet persisted.
type Suggestion struct {
	Title       string         `json:"title"`
	TestType    asset.TestType `json:"test_type"`
	FeatureText string         `json:"feature_text"`
	// FromFallback marks a case whose scenarios came from templates
	// rather than the provider.
	FromFallback bool `json:"from_fallback"`
}

// Suggestions is the result of a preview: rendered candidates plus a
// non-fatal warning flag when the provider was asked but yielded nothing.
type Suggestions struct {
	StoryID       string       `json:"story_id"`
	StoryTitle    string       `json:"story_title"`
	Items         []Suggestion `json:"items"`
	ProviderEmpty bool         `json:"provider_empty,omitempty"`
}

// ReviewedSuggestion is one caller-approved candidate handed to CommitBatch.
type ReviewedSuggestion struct {
	Title       string         `json:"title"`
	TestType    asset.TestType `json:"test_type"`
	FeatureText string         `json:"feature_text"`
	GeneratedAI bool           `json:"generated_by_ai"`
}

// validate rejects a suggestion that cannot become a test-case row.
func (r ReviewedSuggestion) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("empty title")
	}
	if strings.TrimSpace(r.FeatureText) == "" {
		return errors.New("empty feature text")
	}
	return nil
}

// Service composes the generation pipeline over the tenant-scoped store:
// preview computes and renders candidates without persisting, commit
// persists them with idempotent upsert semantics and collision-safe ids.
type Service struct {
	store  *store.Store
	orch   *Orchestrator
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the generation facade.
func NewService(st *store.Store, orch *Orchestrator, opts ...ServiceOption) *Service {
	s := &Service{
		store:  st,
		orch:   orch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview loads the story and produces rendered test-case suggestions
// without touching the store beyond the initial read. Provider trouble is
// never an error here: empty provider output degrades to fallback templates
// and sets ProviderEmpty so callers can warn.
func (s *Service) Preview(ctx context.Context, scope tenancy.Scope, storyID string, in Input) (*Suggestions, error) {
	return s.preview(ctx, scope, storyID, in, nil)
}

// PreviewConcurrent is Preview on the concurrent orchestrator path, used by
// background tasks. The progress callback receives completed and total batch
// counts as provider batches finish.
func (s *Service) PreviewConcurrent(ctx context.Context, scope tenancy.Scope, storyID string, in Input, progress func(done, total int)) (*Suggestions, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	return s.preview(ctx, scope, storyID, in, progress)
}

func (s *Service) preview(ctx context.Context, scope tenancy.Scope, storyID string, in Input, progress func(done, total int)) (*Suggestions, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	story, err := s.store.GetStory(ctx, scope, storyID)
	if err != nil {
		return nil, err
	}

	var generated []scenario.Scenario
	if in.UseAI {
		total := in.NumTestCases * in.ScenariosPerCase
		if progress != nil {
			generated, err = s.orch.RunConcurrent(ctx, story, total, progress)
		} else {
			generated, err = s.orch.Run(ctx, story, total)
		}
		if err != nil {
			return nil, err
		}
	}

	plans := Distribute(generated, in.NumTestCases, in.TestTypes, story.Title)

	out := &Suggestions{
		StoryID:       story.StoryID,
		StoryTitle:    story.Title,
		Items:         make([]Suggestion, 0, len(plans)),
		ProviderEmpty: in.UseAI && len(generated) == 0,
	}

	for _, plan := range plans {
		scenarios := plan.Scenarios
		fallback := len(scenarios) == 0
		if fallback {
			scenarios = FallbackScenarios(story, plan.TestType, in.ScenariosPerCase)
			metrics.AddFallbackScenarios(len(scenarios))
		}
		out.Items = append(out.Items, Suggestion{
			Title:        plan.Title,
			TestType:     plan.TestType,
			FeatureText:  RenderFeature(plan.Title, story.Description, story.StoryID, plan.TestType, scenarios),
			FromFallback: fallback,
		})
	}

	if out.ProviderEmpty {
		s.logger.Warn("Provider yielded no scenarios, suggestions use fallback templates",
			"story_id", story.StoryID,
			"scope", scope.String())
	}

	return out, nil
}

// CommitSingle generates one test case for the story and persists it under
// the deterministic id TC-{storyID}-001 with true upsert semantics:
// committing twice leaves one row, the second content replacing the first
// while the row's creation time survives.
func (s *Service) CommitSingle(ctx context.Context, scope tenancy.Scope, storyID string, in Input) (*asset.TestCase, error) {
	in.NumTestCases = 1
	sug, err := s.preview(ctx, scope, storyID, in, nil)
	if err != nil {
		return nil, err
	}
	item := sug.Items[0]

	tc := &asset.TestCase{
		TenantID:      scope.TenantID,
		WorkspaceID:   scope.WorkspaceID,
		CaseID:        seqid.NextComposite(asset.PrefixTestCase, storyID, 0),
		StoryID:       storyID,
		Title:         item.Title,
		TestType:      item.TestType,
		ScenarioText:  item.FeatureText,
		Status:        asset.CaseStatusPending,
		GeneratedByAI: in.UseAI && !item.FromFallback,
	}

	if err := s.store.UpsertTestCase(ctx, tc); err != nil {
		return nil, err
	}
	metrics.RecordCommit("single")

	s.logger.Info("Test case committed",
		"scope", scope.String(),
		"story_id", storyID,
		"case_id", tc.CaseID)
	return tc, nil
}

// CommitBatch persists already-reviewed suggestions for one story. All items
// are validated up front: a malformed item anywhere rejects the whole batch
// with its index, before any id is assigned or row written. Ids derive from
// one sibling-count read taken before the first assignment, so one batch can
// never hand out duplicate ids, and each candidate is existence-checked with
// a bounded increment retry.
func (s *Service) CommitBatch(ctx context.Context, scope tenancy.Scope, storyID string, items []ReviewedSuggestion) ([]*asset.TestCase, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	for i, item := range items {
		if err := item.validate(); err != nil {
			return nil, &BatchItemError{Index: i, Err: err}
		}
	}

	if _, err := s.store.GetStory(ctx, scope, storyID); err != nil {
		return nil, err
	}

	// One count read for the whole batch.
	siblings, err := s.store.CountTestCasesForStory(ctx, scope, storyID)
	if err != nil {
		return nil, err
	}

	next := int(siblings)
	tcs := make([]*asset.TestCase, 0, len(items))
	for _, item := range items {
		caseID, err := s.allocateCaseID(ctx, scope, storyID, &next)
		if err != nil {
			return nil, err
		}
		testType := item.TestType
		if testType == "" {
			testType = asset.TestTypeFunctional
		}
		tcs = append(tcs, &asset.TestCase{
			TenantID:      scope.TenantID,
			WorkspaceID:   scope.WorkspaceID,
			CaseID:        caseID,
			StoryID:       storyID,
			Title:         item.Title,
			TestType:      testType,
			ScenarioText:  item.FeatureText,
			Status:        asset.CaseStatusPending,
			GeneratedByAI: item.GeneratedAI,
		})
	}

	if err := s.store.UpsertTestCases(ctx, tcs); err != nil {
		return nil, err
	}
	metrics.RecordCommit("batch")

	s.logger.Info("Test case batch committed",
		"scope", scope.String(),
		"story_id", storyID,
		"count", len(tcs),
		"first_id", tcs[0].CaseID,
		"last_id", tcs[len(tcs)-1].CaseID)
	return tcs, nil
}

// allocateCaseID returns the next free composite case id, advancing next
// past every candidate it tried. The store's unique composite index remains
// the final authority; this loop only keeps honest collisions rare.
func (s *Service) allocateCaseID(ctx context.Context, scope tenancy.Scope, storyID string, next *int) (string, error) {
	for attempt := 0; attempt < seqid.MaxAllocationAttempts; attempt++ {
		candidate := seqid.NextComposite(asset.PrefixTestCase, storyID, *next)
		*next++

		exists, err := s.store.TestCaseExists(ctx, scope, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("allocate case id for story %s in %s after %d attempts: %w",
		storyID, scope, seqid.MaxAllocationAttempts, store.ErrCollisionExhausted)
}
