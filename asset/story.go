package asset

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AcceptanceCriterion is one testable statement attached to a story, with a
// completion flag maintained by the team.
type AcceptanceCriterion struct {
	Text string `json:"text" yaml:"text"`
	Done bool   `json:"done" yaml:"done"`
}

// CriterionList stores the ordered acceptance criteria of a story as a JSON
// column, preserving order across round trips.
type CriterionList []AcceptanceCriterion

// Value serializes the list for storage.
func (c CriterionList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal criteria: %w", err)
	}
	return string(data), nil
}

// Scan deserializes the list from storage.
func (c *CriterionList) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported criteria column type %T", value)
	}
	if len(data) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(data, c)
}

// Story is a user story: free-text description plus ordered acceptance
// criteria. Its identity is (tenant_id, workspace_id, story_id).
type Story struct {
	ID          uint          `gorm:"primaryKey" json:"-"`
	TenantID    string        `gorm:"type:varchar(36);uniqueIndex:idx_stories_scope,priority:1;not null" json:"tenant_id"`
	WorkspaceID string        `gorm:"type:varchar(64);uniqueIndex:idx_stories_scope,priority:2;not null" json:"workspace_id"`
	StoryID     string        `gorm:"type:varchar(64);uniqueIndex:idx_stories_scope,priority:3;not null" json:"story_id"`
	Title       string        `gorm:"type:varchar(300);not null" json:"title"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Criteria    CriterionList `gorm:"type:text" json:"criteria,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the GORM table name.
func (Story) TableName() string { return "stories" }

// CompletionPercentage reports how much of the story's acceptance criteria
// is done, 0-100. A story without criteria reports 0.
func (s *Story) CompletionPercentage() float64 {
	if len(s.Criteria) == 0 {
		return 0
	}
	done := 0
	for _, c := range s.Criteria {
		if c.Done {
			done++
		}
	}
	return float64(done) / float64(len(s.Criteria)) * 100
}
