package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// AddComment attaches a comment to a bug in the same scope.
func (s *Store) AddComment(ctx context.Context, c *asset.Comment) error {
	scope := tenancy.Scope{TenantID: c.TenantID, WorkspaceID: c.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}
	if c.Author == "" {
		return fmt.Errorf("comment author is required")
	}

	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := scoped(tx.Model(&asset.Bug{}), scope).Where("bug_id = ?", c.BugID).Count(&n).Error
		if err != nil {
			return fmt.Errorf("check bug %s in %s: %w", c.BugID, scope, err)
		}
		if n == 0 {
			return fmt.Errorf("comment references bug %s not in %s: %w",
				c.BugID, scope, ErrReferenceViolation)
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("add comment to bug %s in %s: %w", c.BugID, scope, err)
		}
		return nil
	})
}

// EditComment replaces the body of a comment. Only the original author may
// edit; anybody else gets ErrPermissionDenied and the row stays untouched.
// Deleted comments cannot be edited.
func (s *Store) EditComment(ctx context.Context, scope tenancy.Scope, commentID uint, actor, body string) error {
	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getComment(tx, scope, commentID)
		if err != nil {
			return err
		}
		if c.Author != actor {
			return fmt.Errorf("comment %d belongs to %s, not %s: %w",
				commentID, c.Author, actor, ErrPermissionDenied)
		}
		if c.Deleted {
			return fmt.Errorf("comment %d in %s: %w", commentID, scope, ErrNotFound)
		}
		c.Body = body
		if err := tx.Save(c).Error; err != nil {
			return fmt.Errorf("edit comment %d in %s: %w", commentID, scope, err)
		}
		return nil
	})
}

// SoftDeleteComment marks a comment deleted without removing the row. Only
// the author may delete their own comment. Deleting twice is a no-op.
func (s *Store) SoftDeleteComment(ctx context.Context, scope tenancy.Scope, commentID uint, actor string) error {
	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getComment(tx, scope, commentID)
		if err != nil {
			return err
		}
		if c.Author != actor {
			return fmt.Errorf("comment %d belongs to %s, not %s: %w",
				commentID, c.Author, actor, ErrPermissionDenied)
		}
		if c.Deleted {
			return nil
		}
		c.Deleted = true
		if err := tx.Save(c).Error; err != nil {
			return fmt.Errorf("delete comment %d in %s: %w", commentID, scope, err)
		}
		return nil
	})
}

// ListComments returns the comments of one bug in creation order. Soft-deleted
// comments are filtered out unless includeDeleted is set.
func (s *Store) ListComments(ctx context.Context, scope tenancy.Scope, bugID string, includeDeleted bool) ([]asset.Comment, error) {
	q := scoped(s.withCtx(ctx), scope).Where("bug_id = ?", bugID)
	if !includeDeleted {
		q = q.Where("deleted = ?", false)
	}
	var out []asset.Comment
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list comments for bug %s in %s: %w", bugID, scope, err)
	}
	return out, nil
}

func getComment(tx *gorm.DB, scope tenancy.Scope, commentID uint) (*asset.Comment, error) {
	var c asset.Comment
	err := scoped(tx, scope).Where("id = ?", commentID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("comment %d in %s: %w", commentID, scope, ErrNotFound)
		}
		return nil, fmt.Errorf("get comment %d in %s: %w", commentID, scope, err)
	}
	return &c, nil
}
