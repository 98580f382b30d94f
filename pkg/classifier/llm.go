package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// LLMClient defines the interface for the optional LLM-backed variable
// suggestion pass.
type LLMClient interface {
	// Complete sends a system prompt and user prompt to the LLM and
	// returns the assistant's response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the model name for provenance tracking.
	ModelName() string
}

// Suggestion is one LLM-proposed variable extraction.
type Suggestion struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Format        string `json:"format,omitempty"`
	Required      bool   `json:"required"`
	OriginalValue string `json:"original_value"`
	Reasoning     string `json:"reasoning,omitempty"`
}

const suggestSystemPrompt = `You analyze browser workflows to identify hardcoded values that should be input variables.

Values that SHOULD be variables: personal information, search terms, user-entered form data, dates, amounts, selections that vary by use case.
Values that should STAY hardcoded: navigation URLs, fixed UI captions used for element targeting, constant configuration.

Respond with a JSON object only, no prose:
{"suggestions": [{"name": "snake_case_name", "type": "string|number|boolean", "format": "optional hint", "required": true, "original_value": "the hardcoded value", "reasoning": "one line"}]}`

// SuggestVariables asks the LLM which hardcoded workflow values should be
// parameterized. The workflow is not modified.
func SuggestVariables(ctx context.Context, client LLMClient, w *schema.Workflow) ([]Suggestion, error) {
	doc, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}

	response, err := client.Complete(ctx, suggestSystemPrompt, string(doc))
	if err != nil {
		return nil, fmt.Errorf("variable suggestion: %w", err)
	}

	var parsed struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w\n\nRaw response:\n%s", err, truncate(response, 500))
	}
	return parsed.Suggestions, nil
}

// ApplySuggestions replaces each suggestion's original value with a
// placeholder across all substitutable step fields and declares the
// corresponding inputs. Suggestions whose names collide with declared
// inputs are skipped.
func ApplySuggestions(w *schema.Workflow, suggestions []Suggestion) {
	declared := make(map[string]bool)
	for _, in := range w.InputSchema {
		declared[in.Name] = true
	}

	for _, s := range suggestions {
		if s.Name == "" || s.OriginalValue == "" || declared[s.Name] {
			continue
		}
		placeholder := "{" + s.Name + "}"
		replaced := false
		for i := range w.Steps {
			step := &w.Steps[i]
			for _, field := range []*string{&step.Value, &step.SelectedText, &step.URL, &step.TargetText, &step.Task} {
				if *field == s.OriginalValue {
					*field = placeholder
					replaced = true
				}
			}
		}
		if !replaced {
			continue
		}
		declared[s.Name] = true
		typ := s.Type
		switch typ {
		case schema.TypeString, schema.TypeNumber, schema.TypeBoolean:
		default:
			typ = schema.TypeString
		}
		w.InputSchema = append(w.InputSchema, schema.InputDef{
			Name:     s.Name,
			Type:     typ,
			Format:   s.Format,
			Required: s.Required,
			Example:  s.OriginalValue,
		})
	}
}

// extractJSON strips markdown code fences the model may wrap around its
// JSON response.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
