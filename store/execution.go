package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// AppendExecution records one test-case run and moves the case to the
// matching status, both in the same transaction. Execution rows are
// append-only: there is no update or single-row delete, they disappear only
// with their workspace. The referenced test case must resolve within the
// execution's own scope.
func (s *Store) AppendExecution(ctx context.Context, exec *asset.Execution) error {
	scope := tenancy.Scope{TenantID: exec.TenantID, WorkspaceID: exec.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}

	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := testCaseExists(tx, scope, exec.CaseID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("execution references test case %s not in %s: %w",
				exec.CaseID, scope, ErrReferenceViolation)
		}

		if exec.ExecutedAt.IsZero() {
			exec.ExecutedAt = time.Now()
		}
		if err := tx.Create(exec).Error; err != nil {
			return fmt.Errorf("append execution for %s in %s: %w", exec.CaseID, scope, err)
		}

		err = scoped(tx.Model(&asset.TestCase{}), scope).
			Where("case_id = ?", exec.CaseID).
			Update("status", caseStatusForResult(exec.Result)).Error
		if err != nil {
			return fmt.Errorf("update test case %s status in %s: %w", exec.CaseID, scope, err)
		}
		return nil
	})
}

// ListExecutions returns the run history of one test case, newest first.
func (s *Store) ListExecutions(ctx context.Context, scope tenancy.Scope, caseID string) ([]asset.Execution, error) {
	var out []asset.Execution
	err := scoped(s.withCtx(ctx), scope).
		Where("case_id = ?", caseID).
		Order("executed_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list executions for %s in %s: %w", caseID, scope, err)
	}
	return out, nil
}

func caseStatusForResult(result asset.ExecutionResult) asset.CaseStatus {
	switch result {
	case asset.ExecutionPassed:
		return asset.CaseStatusPassed
	case asset.ExecutionFailed:
		return asset.CaseStatusFailed
	case asset.ExecutionBlocked:
		return asset.CaseStatusBlocked
	case asset.ExecutionSkipped:
		return asset.CaseStatusSkipped
	}
	return asset.CaseStatusPending
}
