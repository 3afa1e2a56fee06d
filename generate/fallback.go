package generate

import (
	"fmt"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
)

// scenarioKind is the ordinal role of a fallback scenario within a case.
type scenarioKind int

const (
	kindHappy scenarioKind = iota
	kindNegative
	kindEdge
)

// ordinalKind maps a 1-based scenario ordinal to its role: the first
// scenario covers the happy path, the second the negative path, everything
// after that edge conditions.
func ordinalKind(n int) scenarioKind {
	switch n {
	case 1:
		return kindHappy
	case 2:
		return kindNegative
	default:
		return kindEdge
	}
}

var ordinalTags = map[scenarioKind]string{
	kindHappy:    "happy-path",
	kindNegative: "negative",
	kindEdge:     "edge-case",
}

// fallbackSkeleton is one fixed Given/When/Then template. name interpolates
// the story title, given the story id; when and then are literal.
type fallbackSkeleton struct {
	name  string
	given string
	when  string
	then  string
}

var fallbackSkeletons = map[asset.TestType]map[scenarioKind]fallbackSkeleton{
	asset.TestTypeFunctional: {
		kindHappy: {
			name:  "Verify %s works as expected",
			given: "the preconditions described in story %s are met",
			when:  "the user performs the primary action",
			then:  "the expected outcome occurs and is visible to the user",
		},
		kindNegative: {
			name:  "Verify %s rejects invalid input",
			given: "the preconditions described in story %s are met",
			when:  "the user performs the primary action with invalid input",
			then:  "a clear error message is shown and no data is changed",
		},
		kindEdge: {
			name:  "Verify %s at boundary conditions",
			given: "the preconditions described in story %s are met",
			when:  "the user performs the primary action at a boundary value",
			then:  "the behavior matches the acceptance criteria without errors",
		},
	},
	asset.TestTypeUI: {
		kindHappy: {
			name:  "Verify the interface for %s renders correctly",
			given: "the user has opened the screen covered by story %s",
			when:  "the screen finishes loading",
			then:  "all elements are visible, enabled and correctly laid out",
		},
		kindNegative: {
			name:  "Verify interface validation for %s",
			given: "the user has opened the screen covered by story %s",
			when:  "the user submits the form with required fields left empty",
			then:  "inline validation messages appear and submission is blocked",
		},
		kindEdge: {
			name:  "Verify the interface for %s on a constrained viewport",
			given: "the user has opened the screen covered by story %s",
			when:  "the viewport is resized to the smallest supported size",
			then:  "the layout adapts without clipping or overlapping elements",
		},
	},
	asset.TestTypeAPI: {
		kindHappy: {
			name:  "Verify the endpoint for %s returns success",
			given: "a valid authenticated request for story %s",
			when:  "the endpoint is called",
			then:  "the response carries a success status and the expected payload",
		},
		kindNegative: {
			name:  "Verify the endpoint for %s rejects malformed requests",
			given: "a malformed request for story %s",
			when:  "the endpoint is called",
			then:  "the response carries a client error status and a descriptive body",
		},
		kindEdge: {
			name:  "Verify the endpoint for %s under boundary payloads",
			given: "a request at the payload size limit for story %s",
			when:  "the endpoint is called",
			then:  "the request is processed within limits or rejected predictably",
		},
	},
	asset.TestTypeOther: {
		kindHappy: {
			name:  "Verify %s behaves as described",
			given: "the preconditions described in story %s are met",
			when:  "the described behavior is triggered",
			then:  "the result matches the acceptance criteria",
		},
		kindNegative: {
			name:  "Verify %s handles failure paths",
			given: "the preconditions described in story %s are met",
			when:  "the described behavior is triggered under failure conditions",
			then:  "the failure is handled without data loss or crashes",
		},
		kindEdge: {
			name:  "Verify %s in rare conditions",
			given: "the preconditions described in story %s are met",
			when:  "the described behavior is triggered in a rare condition",
			then:  "the behavior degrades predictably",
		},
	},
}

// FallbackScenarios synthesizes perCase deterministic scenarios for one test
// case of the given type, used when the provider yielded nothing for it or
// generation was disabled outright. Pure templating over the story id and
// title; adjacent edge cases past ordinal 3 get a variant suffix so names
// stay distinct.
func FallbackScenarios(story *asset.Story, testType asset.TestType, perCase int) []scenario.Scenario {
	if perCase <= 0 {
		return nil
	}

	skeletons, ok := fallbackSkeletons[testType]
	if !ok {
		testType = asset.TestTypeOther
		skeletons = fallbackSkeletons[testType]
	}

	out := make([]scenario.Scenario, 0, perCase)
	for n := 1; n <= perCase; n++ {
		kind := ordinalKind(n)
		sk := skeletons[kind]

		name := fmt.Sprintf(sk.name, story.Title)
		if kind == kindEdge && n > 3 {
			name = fmt.Sprintf("%s (variant %d)", name, n-2)
		}

		out = append(out, scenario.Scenario{
			Name:  name,
			Tags:  []string{string(testType), ordinalTags[kind]},
			Given: []string{fmt.Sprintf(sk.given, story.StoryID)},
			When:  []string{sk.when},
			Then:  []string{sk.then},
		})
	}
	return out
}
