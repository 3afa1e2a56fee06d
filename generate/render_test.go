package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
)

func TestRenderFeature_Layout(t *testing.T) {
	scenarios := []scenario.Scenario{
		{
			Name:  "Reset link is delivered",
			Tags:  []string{"functional", "happy-path"},
			Given: []string{"a registered user", "a verified email address"},
			When:  []string{"the user requests a password reset"},
			Then:  []string{"a reset link is sent", "the link expires after one hour"},
		},
		{
			Name:  "Unknown address is rejected",
			Given: []string{"no account exists for the address"},
			When:  []string{"the user requests a password reset"},
			Then:  []string{"no email is sent"},
		},
	}

	got := RenderFeature(
		"Functional test for Password reset",
		"A registered user requests a reset link by email.",
		"US-7",
		asset.TestTypeFunctional,
		scenarios,
	)

	want := strings.Join([]string{
		"Feature: Functional test for Password reset",
		"  A registered user requests a reset link by email.",
		"",
		"  Story: US-7",
		"  Test Type: functional",
		"",
		"@functional @happy-path",
		"Scenario 1: Reset link is delivered",
		"  Given a registered user",
		"  And a verified email address",
		"  When the user requests a password reset",
		"  Then a reset link is sent",
		"  And the link expires after one hour",
		"",
		"Scenario 2: Unknown address is rejected",
		"  Given no account exists for the address",
		"  When the user requests a password reset",
		"  Then no email is sent",
		"",
	}, "\n")

	assert.Equal(t, want, got)
}

func TestRenderFeature_NoScenarios(t *testing.T) {
	got := RenderFeature("Title", "Description", "US-1", asset.TestTypeUI, nil)

	want := strings.Join([]string{
		"Feature: Title",
		"  Description",
		"",
		"  Story: US-1",
		"  Test Type: ui",
		"",
	}, "\n")

	assert.Equal(t, want, got)
}
