package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/trace"
)

func intPtr(i int) *int { return &i }

// loginTrace is the canonical single-page form: navigate, type an email,
// press the submit button.
func loginTrace() []trace.Entry {
	return []trace.Entry{
		{
			URL:   "https://example.com/login",
			Title: "Login",
			Actions: []trace.RecordedAction{
				{Kind: "navigate", URL: "https://example.com/login"},
				{Kind: "input_text", Text: "alice@example.com", Index: intPtr(0)},
				{Kind: "click", Index: intPtr(1)},
			},
			InteractedElements: []trace.InteractedElement{
				{TagName: "input", Placeholder: "Email"},
				{TagName: "button", VisibleText: "Submit"},
			},
		},
	}
}

func TestCompileLoginForm(t *testing.T) {
	w, err := Compile(context.Background(), loginTrace(), Options{Name: "login", TraceFile: "login.json"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if len(w.Steps) != 3 {
		t.Fatalf("steps = %+v, want navigate/input/click", w.Steps)
	}
	if w.Steps[0].Type != schema.StepNavigate || w.Steps[0].URL != "https://example.com/login" {
		t.Errorf("step 0 = %+v", w.Steps[0])
	}
	if w.Steps[1].Value != "{email}" {
		t.Errorf("typed email not parameterized: %+v", w.Steps[1])
	}
	if w.Steps[1].TargetText != "Email" {
		t.Errorf("input target = %q", w.Steps[1].TargetText)
	}
	if w.Steps[2].TargetText != "Submit" {
		t.Errorf("button caption must stay constant: %+v", w.Steps[2])
	}

	if len(w.InputSchema) != 1 || w.InputSchema[0].Name != "email" {
		t.Fatalf("input schema = %+v", w.InputSchema)
	}
	if w.InputSchema[0].Format != "user@domain.com" {
		t.Errorf("format = %q", w.InputSchema[0].Format)
	}
}

func TestCompileOutputIsAlwaysValid(t *testing.T) {
	w, err := Compile(context.Background(), loginTrace(), Options{})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if errs := schema.Validate(w); schema.HasErrors(errs) {
		t.Fatalf("compiled workflow fails validation: %v", errs)
	}
}

func TestCompileSearchResultClick(t *testing.T) {
	entries := []trace.Entry{
		{
			URL: "https://example.com",
			Actions: []trace.RecordedAction{
				{Kind: "input_text", Text: "Edison International", Index: intPtr(0)},
				{Kind: "send_keys", Keys: "Enter"},
			},
			InteractedElements: []trace.InteractedElement{
				{TagName: "input", Placeholder: "Search"},
			},
		},
		{
			URL: "https://example.com/results",
			Actions: []trace.RecordedAction{
				{Kind: "click", Index: intPtr(0)},
			},
			InteractedElements: []trace.InteractedElement{
				{TagName: "li", VisibleText: "Edison International", ContainerHint: "Results"},
			},
		},
	}

	w, err := Compile(context.Background(), entries, Options{Name: "search"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	if len(w.Steps) != 3 {
		t.Fatalf("steps = %+v", w.Steps)
	}
	// The keypress had no recorded element; it inherits the focused field.
	if w.Steps[1].Type != schema.StepKeypress || w.Steps[1].TargetText != "Search" {
		t.Errorf("keypress = %+v, want inherited Search target", w.Steps[1])
	}
	// The clicked row echoes the typed value, so the click is parameterized
	// and scoped by its container.
	click := w.Steps[2]
	if click.TargetText != "{search}" {
		t.Errorf("click target = %q, want placeholder", click.TargetText)
	}
	if click.ContainerHint != "Results" {
		t.Errorf("container hint = %q", click.ContainerHint)
	}
}

func TestCompileDynamicDropdownGoesAgentic(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{
				{Kind: "select_dropdown_option", SelectedText: "Q3 2025", Index: intPtr(0)},
			},
			InteractedElements: []trace.InteractedElement{
				{TagName: "div", Dynamic: true},
			},
		},
	}

	w, err := Compile(context.Background(), entries, Options{Name: "report"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.Steps) != 1 || w.Steps[0].Type != schema.StepAgent {
		t.Fatalf("steps = %+v, want one agent step", w.Steps)
	}
	agent := w.Steps[0]
	if agent.MaxSteps != defaultAgentBudget {
		t.Errorf("max_steps = %d", agent.MaxSteps)
	}
	if !strings.Contains(agent.Task, "{") {
		t.Errorf("task = %q, want the parameterized selection carried into the task", agent.Task)
	}
}

func TestCompileFingerprintFallback(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{{Kind: "click", Index: intPtr(0)}},
			InteractedElements: []trace.InteractedElement{
				{TagName: "button", ElementHash: "h-77f0"},
			},
		},
	}
	w, err := Compile(context.Background(), entries, Options{Name: "icon"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if w.Steps[0].ElementHash != "h-77f0" || w.Steps[0].TargetText != "" {
		t.Fatalf("step = %+v, want fingerprint targeting only", w.Steps[0])
	}
}

func TestCompileExtractionOutputSchema(t *testing.T) {
	entries := []trace.Entry{
		{
			URL: "https://example.com/quote",
			Actions: []trace.RecordedAction{
				{Kind: "navigate", URL: "https://example.com/quote"},
				{Kind: "extract_content", Goal: "Extract the current stock price"},
				{Kind: "extract_content", Goal: "Extract the current stock price"},
			},
		},
	}
	w, err := Compile(context.Background(), entries, Options{Name: "quote"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.OutputSchema) != 2 {
		t.Fatalf("output schema = %+v", w.OutputSchema)
	}
	if w.OutputSchema[0].Key != "current_stock_price" {
		t.Errorf("key = %q", w.OutputSchema[0].Key)
	}
	if w.OutputSchema[1].Key != "current_stock_price_2" {
		t.Errorf("duplicate goal key = %q, want suffixed", w.OutputSchema[1].Key)
	}
}

func TestCompileSkipsNonWorkflowActions(t *testing.T) {
	entries := loginTrace()
	entries[0].Actions = append([]trace.RecordedAction{{Kind: "search_google"}},
		append(entries[0].Actions, trace.RecordedAction{Kind: "done"})...)

	w, err := Compile(context.Background(), entries, Options{})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.Steps) != 3 {
		t.Errorf("steps = %+v, recorder bookkeeping must not produce steps", w.Steps)
	}
}

func TestCompileUnknownActionKind(t *testing.T) {
	entries := []trace.Entry{{Actions: []trace.RecordedAction{{Kind: "teleport"}}}}
	_, err := Compile(context.Background(), entries, Options{})
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want CompileError", err)
	}
	if cerr.ActionIndex != 0 {
		t.Errorf("action index = %d", cerr.ActionIndex)
	}
}

func TestCompileEmptyTrace(t *testing.T) {
	if _, err := Compile(context.Background(), nil, Options{}); err == nil {
		t.Fatal("empty trace must not compile")
	}
}

func TestCompileRejectsBracesInRecordedValues(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{{Kind: "click", Index: intPtr(0)}},
			InteractedElements: []trace.InteractedElement{
				{TagName: "button", VisibleText: "Apply {beta} theme"},
			},
		},
	}
	// The caption stays a constant, so its braces must be rejected rather
	// than silently treated as a placeholder.
	if _, err := Compile(context.Background(), entries, Options{}); err == nil {
		t.Fatal("brace-bearing literal must fail compilation")
	}
}

func TestCompileDropsBraceBearingContainerHint(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{{Kind: "click", Index: intPtr(0)}},
			InteractedElements: []trace.InteractedElement{
				{TagName: "li", VisibleText: "Edison", ContainerHint: "Results {beta}"},
			},
		},
	}
	w, err := Compile(context.Background(), entries, Options{Name: "hint"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	// The hint is optional disambiguation: a recorded hint that would parse
	// as placeholder syntax is dropped rather than carried or fatal.
	if w.Steps[0].TargetText != "Edison" || w.Steps[0].ContainerHint != "" {
		t.Fatalf("step = %+v, want semantic target with the hint dropped", w.Steps[0])
	}
}

func TestCompileKeypressAfterAgentStepGoesAgentic(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{
				{Kind: "input_text", Text: "acme", Index: intPtr(0)},
				{Kind: "click", Index: intPtr(1)},
				{Kind: "send_keys", Keys: "Enter"},
			},
			InteractedElements: []trace.InteractedElement{
				{TagName: "input", Placeholder: "Search"},
				{TagName: "div", Dynamic: true},
			},
		},
	}
	w, err := Compile(context.Background(), entries, Options{Name: "combo"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.Steps) != 3 {
		t.Fatalf("steps = %+v", w.Steps)
	}
	if w.Steps[1].Type != schema.StepAgent {
		t.Fatalf("step 1 = %+v, want the dynamic click delegated", w.Steps[1])
	}
	// The keypress follows an agent-handled click, so the focused element is
	// unknown; inheriting the older Search field would press Enter on the
	// wrong element.
	last := w.Steps[2]
	if last.Type != schema.StepAgent {
		t.Fatalf("step 2 = %+v, want agent, not an inherited target", last)
	}
	if last.TargetText != "" || last.ElementHash != "" {
		t.Errorf("delegated keypress must carry no target: %+v", last)
	}
}

func TestCompileNavigationOptimization(t *testing.T) {
	entries := []trace.Entry{
		{
			Actions: []trace.RecordedAction{
				{Kind: "navigate", URL: "https://example.com/"},
				{Kind: "navigate", URL: "https://example.com/a"},
				{Kind: "navigate", URL: "https://example.com/a/b"},
				{Kind: "extract_content", Goal: "Extract the page heading"},
			},
		},
	}

	w, err := Compile(context.Background(), entries, Options{Name: "n"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.Steps) != 4 {
		t.Fatalf("steps = %d, optimization must be off by default", len(w.Steps))
	}

	w, err = Compile(context.Background(), entries, Options{Name: "n", OptimizeNavigation: true})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(w.Steps) != 2 {
		t.Fatalf("steps = %+v, want collapsed navigation plus extract", w.Steps)
	}
	if w.Steps[0].URL != "https://example.com/a/b" {
		t.Errorf("kept url = %q, want the last of the run", w.Steps[0].URL)
	}
}

func TestCompileProvenance(t *testing.T) {
	w, err := Compile(context.Background(), loginTrace(), Options{TraceFile: "login.json"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if w.Source == nil {
		t.Fatal("source meta missing")
	}
	if w.Source.TraceFile != "login.json" {
		t.Errorf("trace file = %q", w.Source.TraceFile)
	}
	if !strings.HasPrefix(w.Source.TraceHash, "sha256:") {
		t.Errorf("trace hash = %q", w.Source.TraceHash)
	}
	if w.Source.CompiledAt == "" {
		t.Error("compiled_at missing")
	}

	w2, err := Compile(context.Background(), loginTrace(), Options{TraceFile: "login.json"})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if w.Source.TraceHash != w2.Source.TraceHash {
		t.Error("same trace must hash identically")
	}
}

func TestOutputKey(t *testing.T) {
	cases := map[string]string{
		"Extract the current stock price":  "current_stock_price",
		"Get the CIK number from the page": "cik_number",
		"":                                 "extracted_content",
	}
	for goal, want := range cases {
		if got := outputKey(goal); got != want {
			t.Errorf("outputKey(%q) = %q, want %q", goal, got, want)
		}
	}
}
