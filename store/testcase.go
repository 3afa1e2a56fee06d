package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// UpsertTestCase inserts a test case or updates the one already stored under
// the same (tenant_id, workspace_id, case_id) key, preserving its surrogate
// id and creation time. The referenced story must resolve within the same
// scope (never a story of another workspace or tenant), otherwise the write
// is rejected with ErrReferenceViolation before anything is touched.
func (s *Store) UpsertTestCase(ctx context.Context, tc *asset.TestCase) error {
	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertTestCase(tx, tc)
	})
}

// UpsertTestCases upserts a batch of test cases in a single transaction.
// Either every row is written or none: the first invalid reference or
// constraint violation rolls the whole batch back.
func (s *Store) UpsertTestCases(ctx context.Context, tcs []*asset.TestCase) error {
	if len(tcs) == 0 {
		return nil
	}
	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		for i, tc := range tcs {
			if err := upsertTestCase(tx, tc); err != nil {
				return fmt.Errorf("test case %d of %d: %w", i+1, len(tcs), err)
			}
		}
		return nil
	})
}

func upsertTestCase(tx *gorm.DB, tc *asset.TestCase) error {
	scope := tenancy.Scope{TenantID: tc.TenantID, WorkspaceID: tc.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := tenancy.ValidateID(tc.CaseID); err != nil {
		return err
	}

	ok, err := storyExists(tx, scope, tc.StoryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("test case %s references story %s not in %s: %w",
			tc.CaseID, tc.StoryID, scope, ErrReferenceViolation)
	}

	var existing asset.TestCase
	err = scoped(tx, scope).Where("case_id = ?", tc.CaseID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(tc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("test case %s in %s: %w", tc.CaseID, scope, ErrAlreadyExists)
			}
			return fmt.Errorf("insert test case %s in %s: %w", tc.CaseID, scope, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find test case %s in %s: %w", tc.CaseID, scope, err)
	}

	existing.StoryID = tc.StoryID
	existing.Title = tc.Title
	existing.TestType = tc.TestType
	existing.ScenarioText = tc.ScenarioText
	existing.GeneratedByAI = tc.GeneratedByAI
	if tc.Status != "" {
		existing.Status = tc.Status
	}
	if err := tx.Save(&existing).Error; err != nil {
		return fmt.Errorf("update test case %s in %s: %w", tc.CaseID, scope, err)
	}
	*tc = existing
	return nil
}

// GetTestCase loads one test case by its full composite key.
func (s *Store) GetTestCase(ctx context.Context, scope tenancy.Scope, caseID string) (*asset.TestCase, error) {
	var tc asset.TestCase
	err := scoped(s.withCtx(ctx), scope).Where("case_id = ?", caseID).First(&tc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test case %s in %s: %w", caseID, scope, ErrNotFound)
		}
		return nil, fmt.Errorf("get test case %s in %s: %w", caseID, scope, err)
	}
	return &tc, nil
}

// ListTestCases returns all test cases in one scope, ordered by case id.
func (s *Store) ListTestCases(ctx context.Context, scope tenancy.Scope) ([]asset.TestCase, error) {
	var out []asset.TestCase
	err := scoped(s.withCtx(ctx), scope).Order("case_id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list test cases in %s: %w", scope, err)
	}
	return out, nil
}

// ListTestCasesForStory returns the test cases referencing one story within
// the scope, ordered by case id.
func (s *Store) ListTestCasesForStory(ctx context.Context, scope tenancy.Scope, storyID string) ([]asset.TestCase, error) {
	var out []asset.TestCase
	err := scoped(s.withCtx(ctx), scope).
		Where("story_id = ?", storyID).
		Order("case_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list test cases for story %s in %s: %w", storyID, scope, err)
	}
	return out, nil
}

// CountTestCasesForStory counts the sibling test cases of one story. Batch
// commits read this once before assigning any new id.
func (s *Store) CountTestCasesForStory(ctx context.Context, scope tenancy.Scope, storyID string) (int64, error) {
	var n int64
	err := scoped(s.withCtx(ctx).Model(&asset.TestCase{}), scope).
		Where("story_id = ?", storyID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count test cases for story %s in %s: %w", storyID, scope, err)
	}
	return n, nil
}

// TestCaseExists reports whether a case id is taken within the scope.
// Id allocation uses this as its collision check.
func (s *Store) TestCaseExists(ctx context.Context, scope tenancy.Scope, caseID string) (bool, error) {
	return testCaseExists(s.withCtx(ctx), scope, caseID)
}

// UpdateTestCaseStatus sets the execution status of one test case.
func (s *Store) UpdateTestCaseStatus(ctx context.Context, scope tenancy.Scope, caseID string, status asset.CaseStatus) error {
	res := scoped(s.withCtx(ctx).Model(&asset.TestCase{}), scope).
		Where("case_id = ?", caseID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update status of test case %s in %s: %w", caseID, scope, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("test case %s in %s: %w", caseID, scope, ErrNotFound)
	}
	return nil
}

// DeleteTestCase removes one test case by its full composite key.
func (s *Store) DeleteTestCase(ctx context.Context, scope tenancy.Scope, caseID string) error {
	res := scoped(s.withCtx(ctx), scope).Where("case_id = ?", caseID).Delete(&asset.TestCase{})
	if res.Error != nil {
		return fmt.Errorf("delete test case %s in %s: %w", caseID, scope, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("test case %s in %s: %w", caseID, scope, ErrNotFound)
	}
	return nil
}
