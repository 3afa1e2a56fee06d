package asset

import "time"

// Comment is an authored note attached to a bug. Comments are append-only
// with soft deletion: a deleted comment keeps its row but is filtered from
// default listings, and only its author may edit or delete it.
type Comment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	TenantID    string `gorm:"type:varchar(36);index:idx_comments_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string `gorm:"type:varchar(64);index:idx_comments_scope,priority:2;not null" json:"workspace_id"`
	BugID       string `gorm:"type:varchar(64);index:idx_comments_scope,priority:3;not null" json:"bug_id"`

	Author  string `gorm:"type:varchar(100);not null" json:"author"`
	Body    string `gorm:"type:text;not null" json:"body"`
	Deleted bool   `gorm:"default:false" json:"deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the GORM table name.
func (Comment) TableName() string { return "comments" }
