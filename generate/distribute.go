package generate

import (
	"fmt"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
)

// CasePlan is the distribution plan for one prospective test case: its
// type-keyed title, its test type, and the scenario slice assigned to it.
type CasePlan struct {
	Title     string
	TestType  asset.TestType
	Scenarios []scenario.Scenario
}

// caseTitles keys the test-case title template by test type.
var caseTitles = map[asset.TestType]string{
	asset.TestTypeFunctional: "Functional test for %s",
	asset.TestTypeUI:         "UI test for %s",
	asset.TestTypeAPI:        "API test for %s",
	asset.TestTypeOther:      "Test for %s",
}

// CaseTitle returns the title for a test case of the given type.
func CaseTitle(testType asset.TestType, storyTitle string) string {
	tmpl, ok := caseTitles[testType]
	if !ok {
		tmpl = caseTitles[asset.TestTypeOther]
	}
	return fmt.Sprintf(tmpl, storyTitle)
}

// Distribute spreads an ordered scenario list across numCases test cases.
// Case i receives scenarios[i*k : i*k+k] with k = len(scenarios)/numCases.
// The remainder (len(scenarios) % numCases) is dropped, not appended to the
// last case. Test types cycle through the supplied list; an empty list
// means every case is functional.
func Distribute(scenarios []scenario.Scenario, numCases int, types []asset.TestType, storyTitle string) []CasePlan {
	if numCases < 1 {
		return nil
	}
	if len(types) == 0 {
		types = []asset.TestType{asset.TestTypeFunctional}
	}

	k := len(scenarios) / numCases
	plans := make([]CasePlan, numCases)
	for i := range plans {
		testType := types[i%len(types)]
		var slice []scenario.Scenario
		if k > 0 {
			slice = scenarios[i*k : i*k+k]
		}
		plans[i] = CasePlan{
			Title:     CaseTitle(testType, storyTitle),
			TestType:  testType,
			Scenarios: slice,
		}
	}
	return plans
}
