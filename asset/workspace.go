package asset

import "time"

// Workspace is the project-level container owned by one tenant. It is the
// unit of cascading deletion: removing a workspace removes every asset
// sharing its (tenant_id, workspace_id) pair, and only those.
type Workspace struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	TenantID    string `gorm:"type:varchar(36);uniqueIndex:idx_workspaces_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string `gorm:"type:varchar(64);uniqueIndex:idx_workspaces_scope,priority:2;not null" json:"workspace_id"`
	Name        string `gorm:"type:varchar(200)" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the GORM table name.
func (Workspace) TableName() string { return "workspaces" }
