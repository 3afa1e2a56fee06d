// Package asset defines the QA asset entities caseforge persists: workspaces,
// user stories, test cases, bugs, executions and comments. Every entity other
// than the workspace references its parent by the full
// (tenant_id, workspace_id, id) composite key; human-readable ids such as
// US-4 or TC-US-4-001 are unique only within that scope.
package asset

// Human-readable id prefixes. Sequence numbers are appended by seqid.
const (
	PrefixWorkspace = "PROJ"
	PrefixStory     = "US"
	PrefixTestCase  = "TC"
	PrefixBug       = "BUG"
)

// TestType classifies what a test case exercises.
type TestType string

const (
	TestTypeFunctional TestType = "functional"
	TestTypeUI         TestType = "ui"
	TestTypeAPI        TestType = "api"
	TestTypeOther      TestType = "other"
)

// ParseTestType normalizes a free-form test type string. Unknown values map
// to TestTypeOther so callers never have to handle an invalid type.
func ParseTestType(s string) TestType {
	switch TestType(s) {
	case TestTypeFunctional, TestTypeUI, TestTypeAPI, TestTypeOther:
		return TestType(s)
	}
	return TestTypeOther
}

// CaseStatus tracks the execution state of a test case.
type CaseStatus string

const (
	CaseStatusPending CaseStatus = "pending"
	CaseStatusPassed  CaseStatus = "passed"
	CaseStatusFailed  CaseStatus = "failed"
	CaseStatusBlocked CaseStatus = "blocked"
	CaseStatusSkipped CaseStatus = "skipped"
)

// BugStatus tracks the lifecycle of a bug report.
type BugStatus string

const (
	BugStatusOpen       BugStatus = "open"
	BugStatusInProgress BugStatus = "in_progress"
	BugStatusResolved   BugStatus = "resolved"
	BugStatusClosed     BugStatus = "closed"
)

// BugSeverity grades the impact of a bug.
type BugSeverity string

const (
	SeverityCritical BugSeverity = "critical"
	SeverityHigh     BugSeverity = "high"
	SeverityMedium   BugSeverity = "medium"
	SeverityLow      BugSeverity = "low"
)
