package generate

import (
	"fmt"
	"strings"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
)

// RenderFeature renders the feature text for one test case. File-based
// consumers reproduce this output verbatim, so the layout is a contract:
// header block, then one blank line before each numbered scenario, tags on
// their own line only when present, steps indented two spaces with the
// section keyword on the first step and And on the rest.
func RenderFeature(title, description, storyID string, testType asset.TestType, scenarios []scenario.Scenario) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feature: %s\n", title)
	fmt.Fprintf(&b, "  %s\n", description)
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Story: %s\n", storyID)
	fmt.Fprintf(&b, "  Test Type: %s\n", testType)

	for i, sc := range scenarios {
		b.WriteString("\n")
		if len(sc.Tags) > 0 {
			for j, tag := range sc.Tags {
				if j > 0 {
					b.WriteString(" ")
				}
				b.WriteString("@")
				b.WriteString(tag)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Scenario %d: %s\n", i+1, sc.Name)
		writeSteps(&b, "Given", sc.Given)
		writeSteps(&b, "When", sc.When)
		writeSteps(&b, "Then", sc.Then)
	}

	return b.String()
}

func writeSteps(b *strings.Builder, keyword string, steps []string) {
	for i, step := range steps {
		kw := keyword
		if i > 0 {
			kw = "And"
		}
		fmt.Fprintf(b, "  %s %s\n", kw, step)
	}
}
