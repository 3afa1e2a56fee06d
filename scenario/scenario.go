// Package scenario turns user stories into Given/When/Then test scenarios
// through an external generative provider. The client is provider-agnostic
// with bounded retry; concrete provider adapters live in scenario/providers
// and register themselves at init.
package scenario

import "strings"

// Scenario is one generated test scenario in Given/When/Then form. Each
// section holds ordered steps; the first step of a section carries the
// keyword when rendered, the rest continue with And.
type Scenario struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Given []string `json:"given"`
	When  []string `json:"when"`
	Then  []string `json:"then"`
}

// Valid reports whether the scenario is usable downstream: a non-blank name
// and at least one non-blank step in each of the three sections.
func (s Scenario) Valid() bool {
	if strings.TrimSpace(s.Name) == "" {
		return false
	}
	return hasStep(s.Given) && hasStep(s.When) && hasStep(s.Then)
}

func hasStep(steps []string) bool {
	for _, step := range steps {
		if strings.TrimSpace(step) != "" {
			return true
		}
	}
	return false
}
