package asset

import "time"

// Bug is a defect report scoped to one workspace. Story and test-case
// references are optional; when present they must resolve within the bug's
// own (tenant_id, workspace_id) pair.
type Bug struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	TenantID    string `gorm:"type:varchar(36);uniqueIndex:idx_bugs_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string `gorm:"type:varchar(64);uniqueIndex:idx_bugs_scope,priority:2;not null" json:"workspace_id"`
	BugID       string `gorm:"type:varchar(64);uniqueIndex:idx_bugs_scope,priority:3;not null" json:"bug_id"`

	StoryID string `gorm:"type:varchar(64)" json:"story_id,omitempty"`
	CaseID  string `gorm:"type:varchar(64)" json:"case_id,omitempty"`

	Title       string      `gorm:"type:varchar(300);not null" json:"title"`
	Description string      `gorm:"type:text" json:"description,omitempty"`
	Severity    BugSeverity `gorm:"type:varchar(20);default:medium" json:"severity"`
	Status      BugStatus   `gorm:"type:varchar(20);default:open" json:"status"`
	ReportedBy  string      `gorm:"type:varchar(100)" json:"reported_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the GORM table name.
func (Bug) TableName() string { return "bugs" }
