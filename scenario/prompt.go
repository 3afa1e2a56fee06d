package scenario

import (
	"fmt"
	"strings"
)

// PromptParams contains the story data interpolated into the generation prompt.
type PromptParams struct {
	// StoryID is the human-readable story identifier (e.g., US-4).
	StoryID string

	// Title is the story title.
	Title string

	// Description is the free-text story body.
	Description string

	// Criteria lists the story's acceptance criteria, in order.
	Criteria []string

	// Count is how many scenarios to request.
	Count int
}

// ScenarioPrompt returns the prompt requesting test scenarios for a story.
// The provider answers with a JSON object holding Given/When/Then scenarios.
func ScenarioPrompt(params PromptParams) string {
	description := params.Description
	if description == "" {
		description = "(none)"
	}

	return fmt.Sprintf(`You are a QA engineer writing test scenarios for a user story.

## Story: %s

**Title:** %s

**Description:** %s

**Acceptance Criteria:**
%s

## Your Task

Generate exactly %d test scenarios that verify this story. Each scenario should:
- Cover a distinct behavior (happy path, error handling, edge cases)
- Use concrete, observable steps in Given/When/Then form
- Stay within what the story and its acceptance criteria describe

## Output Format

Return ONLY valid JSON in this exact format:

`+"```json"+`
{
  "scenarios": [
    {
      "name": "Short descriptive scenario name",
      "tags": ["happy-path"],
      "given": ["a specific precondition or state"],
      "when": ["an action is performed"],
      "then": ["the expected outcome or behavior"]
    }
  ]
}
`+"```"+`

## Scenario Rules

1. Each scenario MUST have a name and at least one step in each of given, when, and then
2. Steps are plain statements without Given/When/Then keywords; multiple steps per section are allowed
3. Be specific and measurable (avoid vague outcomes)
4. Order scenarios from the most common behavior to the rarest
5. Tags are optional lowercase hyphenated labels such as "happy-path", "negative", "edge-case"

Generate the scenarios now. Return ONLY the JSON output, no other text.
`, params.StoryID, params.Title, description, formatCriteria(params.Criteria), params.Count)
}

// formatCriteria formats the acceptance criteria as a bullet list.
func formatCriteria(criteria []string) string {
	if len(criteria) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range criteria {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// GenerationResponse represents the expected JSON response from the provider.
type GenerationResponse struct {
	Scenarios []Scenario `json:"scenarios"`
}
