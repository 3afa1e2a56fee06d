package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// CreateWorkspace inserts a new workspace. A second create under the same
// (tenant_id, workspace_id) pair fails with ErrAlreadyExists.
func (s *Store) CreateWorkspace(ctx context.Context, ws *asset.Workspace) error {
	scope := tenancy.Scope{TenantID: ws.TenantID, WorkspaceID: ws.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}

	if err := s.withCtx(ctx).Create(ws).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("workspace %s: %w", scope, ErrAlreadyExists)
		}
		return fmt.Errorf("create workspace %s: %w", scope, err)
	}
	return nil
}

// GetWorkspace loads one workspace by its full composite key.
func (s *Store) GetWorkspace(ctx context.Context, scope tenancy.Scope) (*asset.Workspace, error) {
	var ws asset.Workspace
	err := scoped(s.withCtx(ctx), scope).First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workspace %s: %w", scope, ErrNotFound)
		}
		return nil, fmt.Errorf("get workspace %s: %w", scope, err)
	}
	return &ws, nil
}

// ListWorkspaces returns all workspaces owned by one tenant, ordered by id.
func (s *Store) ListWorkspaces(ctx context.Context, tenantID string) ([]asset.Workspace, error) {
	var out []asset.Workspace
	err := s.withCtx(ctx).
		Where("tenant_id = ?", tenantID).
		Order("workspace_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list workspaces for tenant %s: %w", tenantID, err)
	}
	return out, nil
}

// DeleteWorkspace removes a workspace and every asset sharing its
// (tenant_id, workspace_id) pair — stories, test cases, bugs, executions and
// comments — in one transaction. Assets under any other scope, including a
// workspace with the same literal id in another tenant, are untouched.
func (s *Store) DeleteWorkspace(ctx context.Context, scope tenancy.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := workspaceExists(tx, scope)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("workspace %s: %w", scope, ErrNotFound)
		}

		// Children first so a failure never leaves orphans behind.
		for _, model := range []any{
			&asset.Comment{},
			&asset.Execution{},
			&asset.Bug{},
			&asset.TestCase{},
			&asset.Story{},
		} {
			if err := scoped(tx, scope).Delete(model).Error; err != nil {
				return fmt.Errorf("cascade delete %T in %s: %w", model, scope, err)
			}
		}

		if err := scoped(tx, scope).Delete(&asset.Workspace{}).Error; err != nil {
			return fmt.Errorf("delete workspace %s: %w", scope, err)
		}

		s.logger.Info("workspace deleted", "scope", scope.String())
		return nil
	})
}
