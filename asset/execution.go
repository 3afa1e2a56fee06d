package asset

import "time"

// ExecutionResult is the outcome of one test-case run.
type ExecutionResult string

const (
	ExecutionPassed  ExecutionResult = "passed"
	ExecutionFailed  ExecutionResult = "failed"
	ExecutionBlocked ExecutionResult = "blocked"
	ExecutionSkipped ExecutionResult = "skipped"
)

// Execution is an append-only record of one test-case run. Rows are never
// updated or deleted individually; they go away only with their workspace.
type Execution struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	TenantID    string `gorm:"type:varchar(36);index:idx_executions_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string `gorm:"type:varchar(64);index:idx_executions_scope,priority:2;not null" json:"workspace_id"`
	CaseID      string `gorm:"type:varchar(64);index:idx_executions_scope,priority:3;not null" json:"case_id"`

	Result     ExecutionResult `gorm:"type:varchar(20);not null" json:"result"`
	Notes      string          `gorm:"type:text" json:"notes,omitempty"`
	ExecutedBy string          `gorm:"type:varchar(100)" json:"executed_by,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// TableName returns the GORM table name.
func (Execution) TableName() string { return "executions" }
