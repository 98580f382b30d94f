package classifier

import (
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

func TestExtractMarkers(t *testing.T) {
	markers := ExtractMarkers("VAR:user_email:john@example.com")
	if len(markers) != 1 {
		t.Fatalf("markers = %+v, want 1", markers)
	}
	if markers[0].Name != "user_email" || markers[0].Value != "john@example.com" {
		t.Errorf("marker = %+v", markers[0])
	}
}

func TestExtractMarkersNone(t *testing.T) {
	if markers := ExtractMarkers("plain value"); markers != nil {
		t.Errorf("markers = %+v, want none", markers)
	}
}

func TestProcessMarkersReplacesFieldsAndDeclaresInputs(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "markers",
		Steps: []schema.Step{
			{Type: schema.StepInput, TargetText: "Email", Value: "VAR:user_email:john@example.com"},
			{Type: schema.StepNavigate, URL: "https://example.com/search?q=VAR:search_term:laptop"},
		},
	}

	extracted := ProcessMarkers(w)
	if len(extracted) != 2 {
		t.Fatalf("extracted = %+v, want 2", extracted)
	}

	if w.Steps[0].Value != "{user_email}" {
		t.Errorf("value = %q, want placeholder", w.Steps[0].Value)
	}
	if w.Steps[1].URL != "{search_term}" {
		t.Errorf("url = %q, want placeholder", w.Steps[1].URL)
	}

	byName := make(map[string]schema.InputDef)
	for _, in := range w.InputSchema {
		byName[in.Name] = in
	}
	email, ok := byName["user_email"]
	if !ok {
		t.Fatal("user_email not declared")
	}
	if email.Format != "user@domain.com" || !email.Required {
		t.Errorf("user_email def = %+v", email)
	}
	if _, ok := byName["search_term"]; !ok {
		t.Error("search_term not declared")
	}
}

func TestProcessMarkersSkipsDeclaredInputs(t *testing.T) {
	w := &schema.Workflow{
		InputSchema: []schema.InputDef{{Name: "city", Type: schema.TypeString, Required: true}},
		Steps: []schema.Step{
			{Type: schema.StepInput, TargetText: "City", Value: "VAR:city:Santiago"},
		},
	}
	extracted := ProcessMarkers(w)
	if len(extracted) != 0 {
		t.Errorf("extracted = %+v, want none (already declared)", extracted)
	}
	if len(w.InputSchema) != 1 {
		t.Errorf("input schema grew: %+v", w.InputSchema)
	}
	if w.Steps[0].Value != "{city}" {
		t.Errorf("value = %q, want placeholder", w.Steps[0].Value)
	}
}
