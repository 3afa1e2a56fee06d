package scenario_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/scenario"
	_ "github.com/caseforge/caseforge/scenario/providers"
)

func testStory() *asset.Story {
	return &asset.Story{
		TenantID:    "tenant-a",
		WorkspaceID: "PROJ-001",
		StoryID:     "US-7",
		Title:       "User can reset their password",
		Description: "A registered user requests a reset link by email.",
		Criteria: asset.CriterionList{
			{Text: "Reset link expires after one hour"},
			{Text: "Old password stops working after the reset"},
		},
	}
}

// scenariosJSON builds a provider answer carrying one scenario per name,
// wrapped in a markdown fence the way real providers answer.
func scenariosJSON(names ...string) string {
	items := make([]map[string]any, len(names))
	for i, name := range names {
		items[i] = map[string]any{
			"name":  name,
			"tags":  []string{"happy-path"},
			"given": []string{"a registered user"},
			"when":  []string{"they request a reset"},
			"then":  []string{"a reset email arrives"},
		}
	}
	payload, _ := json.Marshal(map[string]any{"scenarios": items})
	return "```json\n" + string(payload) + "\n```"
}

func scenarioServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion("test-model", content))
	}))
}

func newTestGenerator(t *testing.T, serverURL string) *scenario.Generator {
	t.Helper()
	client := scenario.NewClient(scenario.Endpoint{
		Provider: "ollama",
		URL:      serverURL,
		Model:    "test-model",
	}, scenario.WithRetryConfig(fastRetry()))
	return scenario.NewGenerator(client)
}

func TestGenerator_Generate_Success(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		prompt = string(body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletion("test-model", scenariosJSON("Valid reset", "Expired link")))
	}))
	defer server.Close()

	g := newTestGenerator(t, server.URL)
	scenarios := g.Generate(context.Background(), testStory(), 2)

	require.Len(t, scenarios, 2)
	assert.Equal(t, "Valid reset", scenarios[0].Name)
	assert.Equal(t, "Expired link", scenarios[1].Name)
	assert.Equal(t, []string{"a registered user"}, scenarios[0].Given)

	// The prompt carries the story data so the provider has full context.
	assert.Contains(t, prompt, "US-7")
	assert.Contains(t, prompt, "User can reset their password")
	assert.Contains(t, prompt, "Reset link expires after one hour")
}

func TestGenerator_Generate_TruncatesToCount(t *testing.T) {
	server := scenarioServer(t, scenariosJSON("one", "two", "three", "four", "five"))
	defer server.Close()

	g := newTestGenerator(t, server.URL)
	scenarios := g.Generate(context.Background(), testStory(), 3)

	require.Len(t, scenarios, 3)
	assert.Equal(t, "one", scenarios[0].Name)
	assert.Equal(t, "three", scenarios[2].Name)
}

func TestGenerator_Generate_DropsInvalidScenarios(t *testing.T) {
	content := "```json\n" + `{
		"scenarios": [
			{"name": "usable", "given": ["a"], "when": ["b"], "then": ["c"]},
			{"name": "", "given": ["a"], "when": ["b"], "then": ["c"]},
			{"name": "no then steps", "given": ["a"], "when": ["b"], "then": []}
		]
	}` + "\n```"
	server := scenarioServer(t, content)
	defer server.Close()

	g := newTestGenerator(t, server.URL)
	scenarios := g.Generate(context.Background(), testStory(), 5)

	require.Len(t, scenarios, 1)
	assert.Equal(t, "usable", scenarios[0].Name)
}

func TestGenerator_Generate_MalformedResponseYieldsNothing(t *testing.T) {
	server := scenarioServer(t, "I could not come up with scenarios, sorry.")
	defer server.Close()

	g := newTestGenerator(t, server.URL)
	scenarios := g.Generate(context.Background(), testStory(), 3)

	assert.Empty(t, scenarios)
}

func TestGenerator_Generate_ProviderFailureYieldsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad key")
	}))
	defer server.Close()

	g := newTestGenerator(t, server.URL)
	scenarios := g.Generate(context.Background(), testStory(), 3)

	assert.Empty(t, scenarios)
}

func TestGenerator_Generate_ZeroCount(t *testing.T) {
	// No server: a zero request must not reach the provider at all.
	g := newTestGenerator(t, "http://127.0.0.1:0")
	scenarios := g.Generate(context.Background(), testStory(), 0)

	assert.Nil(t, scenarios)
}

func TestScenarioPrompt_FormatsCriteria(t *testing.T) {
	prompt := scenario.ScenarioPrompt(scenario.PromptParams{
		StoryID:  "US-1",
		Title:    "Login",
		Criteria: []string{"first", "second"},
		Count:    4,
	})

	assert.Contains(t, prompt, "- first\n- second")
	assert.Contains(t, prompt, "exactly 4 test scenarios")
	assert.Contains(t, prompt, "(none)") // empty description placeholder

	empty := scenario.ScenarioPrompt(scenario.PromptParams{StoryID: "US-1", Title: "Login", Count: 1})
	assert.True(t, strings.Contains(empty, "**Acceptance Criteria:**\n(none)"))
}
