package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// UpsertStory inserts a story or, when one already exists under the same
// (tenant_id, workspace_id, story_id) key, updates it in place. The surrogate
// row id and creation time of an existing story are preserved; title,
// description and criteria are replaced. The parent workspace must exist in
// the same scope or the write is rejected with ErrReferenceViolation.
func (s *Store) UpsertStory(ctx context.Context, story *asset.Story) error {
	scope := tenancy.Scope{TenantID: story.TenantID, WorkspaceID: story.WorkspaceID}
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := tenancy.ValidateID(story.StoryID); err != nil {
		return err
	}

	return s.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := workspaceExists(tx, scope)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("story %s: workspace %s does not exist: %w",
				story.StoryID, scope, ErrReferenceViolation)
		}

		var existing asset.Story
		err = scoped(tx, scope).Where("story_id = ?", story.StoryID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(story).Error; err != nil {
				return fmt.Errorf("insert story %s in %s: %w", story.StoryID, scope, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("find story %s in %s: %w", story.StoryID, scope, err)
		}

		existing.Title = story.Title
		existing.Description = story.Description
		existing.Criteria = story.Criteria
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("update story %s in %s: %w", story.StoryID, scope, err)
		}
		*story = existing
		return nil
	})
}

// GetStory loads one story by its full composite key.
func (s *Store) GetStory(ctx context.Context, scope tenancy.Scope, storyID string) (*asset.Story, error) {
	var story asset.Story
	err := scoped(s.withCtx(ctx), scope).Where("story_id = ?", storyID).First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("story %s in %s: %w", storyID, scope, ErrNotFound)
		}
		return nil, fmt.Errorf("get story %s in %s: %w", storyID, scope, err)
	}
	return &story, nil
}

// ListStories returns all stories in one scope, ordered by story id.
func (s *Store) ListStories(ctx context.Context, scope tenancy.Scope) ([]asset.Story, error) {
	var out []asset.Story
	err := scoped(s.withCtx(ctx), scope).Order("story_id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list stories in %s: %w", scope, err)
	}
	return out, nil
}

// CountStories counts the stories in one scope.
func (s *Store) CountStories(ctx context.Context, scope tenancy.Scope) (int64, error) {
	var n int64
	err := scoped(s.withCtx(ctx).Model(&asset.Story{}), scope).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count stories in %s: %w", scope, err)
	}
	return n, nil
}
