package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// CreateBug inserts a bug report. The optional story and test-case references
// must resolve within the bug's own scope; a reference into another workspace
// or tenant is rejected with ErrReferenceViolation before the row is written.
func (s *Store) CreateBug(ctx context.Context, bug *asset.Bug) error {
	scope := tenancy.Scope{TenantID: bug.TenantID, WorkspaceID: bug.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := tenancy.ValidateID(bug.BugID); err != nil {
		return err
	}

	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := workspaceExists(tx, scope)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bug %s: workspace %s does not exist: %w",
				bug.BugID, scope, ErrReferenceViolation)
		}

		if bug.StoryID != "" {
			ok, err := storyExists(tx, scope, bug.StoryID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bug %s references story %s not in %s: %w",
					bug.BugID, bug.StoryID, scope, ErrReferenceViolation)
			}
		}
		if bug.CaseID != "" {
			ok, err := testCaseExists(tx, scope, bug.CaseID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("bug %s references test case %s not in %s: %w",
					bug.BugID, bug.CaseID, scope, ErrReferenceViolation)
			}
		}

		if bug.Severity == "" {
			bug.Severity = asset.SeverityMedium
		}
		if bug.Status == "" {
			bug.Status = asset.BugStatusOpen
		}

		if err := tx.Create(bug).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("bug %s in %s: %w", bug.BugID, scope, ErrAlreadyExists)
			}
			return fmt.Errorf("insert bug %s in %s: %w", bug.BugID, scope, err)
		}
		return nil
	})
}

// GetBug loads one bug by its full composite key.
func (s *Store) GetBug(ctx context.Context, scope tenancy.Scope, bugID string) (*asset.Bug, error) {
	var bug asset.Bug
	err := scoped(s.withCtx(ctx), scope).Where("bug_id = ?", bugID).First(&bug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bug %s in %s: %w", bugID, scope, ErrNotFound)
		}
		return nil, fmt.Errorf("get bug %s in %s: %w", bugID, scope, err)
	}
	return &bug, nil
}

// ListBugs returns the bugs in one scope ordered by bug id, optionally
// filtered to one status.
func (s *Store) ListBugs(ctx context.Context, scope tenancy.Scope, status asset.BugStatus) ([]asset.Bug, error) {
	q := scoped(s.withCtx(ctx), scope)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []asset.Bug
	if err := q.Order("bug_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list bugs in %s: %w", scope, err)
	}
	return out, nil
}

// UpdateBugStatus moves one bug to a new lifecycle status.
func (s *Store) UpdateBugStatus(ctx context.Context, scope tenancy.Scope, bugID string, status asset.BugStatus) error {
	res := scoped(s.withCtx(ctx).Model(&asset.Bug{}), scope).
		Where("bug_id = ?", bugID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("update status of bug %s in %s: %w", bugID, scope, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bug %s in %s: %w", bugID, scope, ErrNotFound)
	}
	return nil
}

// CountBugs counts the bugs in one scope. Id allocation for bug ids derives
// the next sequence number from this count.
func (s *Store) CountBugs(ctx context.Context, scope tenancy.Scope) (int64, error) {
	var n int64
	err := scoped(s.withCtx(ctx).Model(&asset.Bug{}), scope).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count bugs in %s: %w", scope, err)
	}
	return n, nil
}

// BugExists reports whether a bug id is taken within the scope.
func (s *Store) BugExists(ctx context.Context, scope tenancy.Scope, bugID string) (bool, error) {
	var n int64
	err := scoped(s.withCtx(ctx).Model(&asset.Bug{}), scope).Where("bug_id = ?", bugID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check bug %s in %s: %w", bugID, scope, err)
	}
	return n > 0, nil
}
