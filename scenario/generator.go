package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caseforge/caseforge/asset"
)

// defaultTemperature balances scenario variety against prompt adherence.
const defaultTemperature = 0.7

// Generator produces scenarios for a story through the configured provider.
// Generate is total: every provider fault degrades to an empty or shorter
// result so callers can fill the gap from fallback templates.
type Generator struct {
	client *Client
	logger *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a generator backed by the given client.
func NewGenerator(client *Client, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate requests up to count scenarios for the story. It never returns an
// error: transport failures, auth failures, and malformed responses all log
// at Warn and yield fewer scenarios than requested, possibly none.
func (g *Generator) Generate(ctx context.Context, story *asset.Story, count int) []Scenario {
	if count <= 0 {
		return nil
	}

	criteria := make([]string, 0, len(story.Criteria))
	for _, c := range story.Criteria {
		criteria = append(criteria, c.Text)
	}

	prompt := ScenarioPrompt(PromptParams{
		StoryID:     story.StoryID,
		Title:       story.Title,
		Description: story.Description,
		Criteria:    criteria,
		Count:       count,
	})

	temperature := defaultTemperature
	resp, err := g.client.Complete(ctx, Request{
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
		MaxTokens:   4096,
	})
	if err != nil {
		g.logger.Warn("Scenario generation failed, continuing without provider output",
			"story_id", story.StoryID,
			"requested", count,
			"error", err)
		return nil
	}

	scenarios, dropped, err := parseScenarios(resp.Content)
	if err != nil {
		g.logger.Warn("Could not parse provider response",
			"story_id", story.StoryID,
			"model", resp.Model,
			"error", err)
		return nil
	}
	if dropped > 0 {
		g.logger.Warn("Provider returned unusable scenarios",
			"story_id", story.StoryID,
			"dropped", dropped,
			"kept", len(scenarios))
	}

	if len(scenarios) > count {
		scenarios = scenarios[:count]
	}

	g.logger.Debug("Scenarios generated",
		"story_id", story.StoryID,
		"requested", count,
		"returned", len(scenarios),
		"tokens_used", resp.Usage.TotalTokens)

	return scenarios
}

// parseScenarios extracts and decodes scenarios from response content.
// Scenarios failing validation are dropped, not fatal.
func parseScenarios(content string) ([]Scenario, int, error) {
	jsonContent := ExtractJSON(content)
	if jsonContent == "" {
		return nil, 0, fmt.Errorf("no JSON object in response")
	}

	var resp GenerationResponse
	if err := json.Unmarshal([]byte(jsonContent), &resp); err != nil {
		return nil, 0, fmt.Errorf("decode scenarios: %w", err)
	}

	kept := make([]Scenario, 0, len(resp.Scenarios))
	dropped := 0
	for _, s := range resp.Scenarios {
		if !s.Valid() {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped, nil
}
