package asset

import "time"

// TestCase holds one generated or hand-written test case. Its identity is
// (tenant_id, workspace_id, case_id); StoryID references the parent story
// within the same tenant and workspace, never across scopes.
type TestCase struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	TenantID    string `gorm:"type:varchar(36);uniqueIndex:idx_test_cases_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string `gorm:"type:varchar(64);uniqueIndex:idx_test_cases_scope,priority:2;not null" json:"workspace_id"`
	CaseID      string `gorm:"type:varchar(64);uniqueIndex:idx_test_cases_scope,priority:3;not null" json:"case_id"`

	// StoryID resolves against (TenantID, WorkspaceID, StoryID) of the
	// stories table; the store validates the triple before any write.
	StoryID string `gorm:"type:varchar(64);index:idx_test_cases_story;not null" json:"story_id"`

	Title         string     `gorm:"type:varchar(300)" json:"title"`
	TestType      TestType   `gorm:"type:varchar(20);default:functional" json:"test_type"`
	ScenarioText  string     `gorm:"type:text" json:"scenario_text"`
	Status        CaseStatus `gorm:"type:varchar(20);default:pending" json:"status"`
	GeneratedByAI bool       `json:"generated_by_ai"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the GORM table name.
func (TestCase) TableName() string { return "test_cases" }
