package scenario

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"scenarios": []}`,
			wantKey: "scenarios",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"scenarios\": []}\n```",
			wantKey: "scenarios",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"scenarios\": []}\n```\n\nThese scenarios cover the story.",
			wantKey: "scenarios",
		},
		{
			name: "JS comments in values",
			input: "```json\n{\n  \"scenarios\": [\n    {\n      \"name\": \"Valid login\",   // happy path\n      \"given\": [\"a registered user\"],\n      \"when\": [\"they log in\"],\n      \"then\": [\"the dashboard loads\"]\n    }\n  ]\n}\n```",
			wantKey: "scenarios",
		},
		{
			name: "JS comments and trailing commas",
			input: "```json\n{\n  \"scenarios\": [\n    {\"name\": \"one\"},  // first\n    {\"name\": \"two\"},  // second\n  ]\n}\n```",
			wantKey: "scenarios",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"given": ["the API at http://example.com/path is up"]}`,
			wantKey: "given",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I could not produce scenarios for this story.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if tt.wantKey != "" {
				if _, ok := parsed[tt.wantKey]; !ok {
					t.Errorf("expected key %q in parsed JSON", tt.wantKey)
				}
			}
		})
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "name": "Valid login",`,
			expected: `  "name": "Valid login",`,
		},
		{
			name:     "trailing comment",
			input:    `  "name": "Valid login",  // happy path`,
			expected: `  "name": "Valid login",`,
		},
		{
			name:     "URL in string preserved",
			input:    `  "step": "open http://example.com",`,
			expected: `  "step": "open http://example.com",`,
		},
		{
			name:     "URL with trailing comment",
			input:    `  "step": "open http://example.com",  // the url`,
			expected: `  "step": "open http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // This is a comment`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "step": "press \"go//fast\"",  // comment`,
			expected: `  "step": "press \"go//fast\"",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "trailing comma in array",
			input: `{"tags": ["ui", "negative",]}`,
		},
		{
			name:  "trailing comma in object",
			input: `{"name": "x", "tags": [],}`,
		},
		{
			name:  "comments and trailing commas",
			input: "{\n  \"given\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSON(tt.input)

			var parsed any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("cleaned JSON is invalid: %v\nresult: %s", err, result)
			}
		})
	}
}
