package classifier

import (
	"context"
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// mockLLMClient is a test double that returns a pre-built response.
type mockLLMClient struct {
	response string
	err      error
	// captured prompts for assertions
	systemPrompt string
	userPrompt   string
}

func (m *mockLLMClient) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.systemPrompt = systemPrompt
	m.userPrompt = userPrompt
	return m.response, m.err
}

func (m *mockLLMClient) ModelName() string { return "mock-model" }

func TestSuggestVariablesParsesResponse(t *testing.T) {
	client := &mockLLMClient{response: "```json\n" + `{
	  "suggestions": [
	    {"name": "first_name", "type": "string", "required": true, "original_value": "John", "reasoning": "personal data"}
	  ]
	}` + "\n```"}

	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "form",
		Steps:   []schema.Step{{Type: schema.StepInput, TargetText: "First Name", Value: "John"}},
	}

	suggestions, err := SuggestVariables(context.Background(), client, w)
	if err != nil {
		t.Fatalf("SuggestVariables error: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].Name != "first_name" {
		t.Fatalf("suggestions = %+v", suggestions)
	}
	if client.userPrompt == "" {
		t.Error("workflow JSON was not sent to the model")
	}
}

func TestSuggestVariablesMalformedResponse(t *testing.T) {
	client := &mockLLMClient{response: "sorry, I can't do that"}
	w := &schema.Workflow{Version: "1", Name: "x"}
	if _, err := SuggestVariables(context.Background(), client, w); err == nil {
		t.Error("expected parse error for non-JSON response")
	}
}

func TestApplySuggestions(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "form",
		Steps: []schema.Step{
			{Type: schema.StepInput, TargetText: "First Name", Value: "John"},
			{Type: schema.StepClick, TargetText: "Submit"},
		},
	}

	ApplySuggestions(w, []Suggestion{
		{Name: "first_name", Type: "string", Required: true, OriginalValue: "John"},
		{Name: "never_seen", Type: "string", Required: true, OriginalValue: "not in workflow"},
	})

	if w.Steps[0].Value != "{first_name}" {
		t.Errorf("value = %q, want placeholder", w.Steps[0].Value)
	}
	if len(w.InputSchema) != 1 {
		t.Fatalf("input schema = %+v, want only the applied suggestion", w.InputSchema)
	}
	if w.InputSchema[0].Name != "first_name" {
		t.Errorf("input = %+v", w.InputSchema[0])
	}
}
