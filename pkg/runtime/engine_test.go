package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/webrun/pkg/agent"
	"github.com/ormasoftchile/webrun/pkg/driver"
	"github.com/ormasoftchile/webrun/pkg/schema"
)

type mockRef struct{ desc string }

func (m mockRef) Describe() string { return m.desc }

// mockDriver counts calls and can be scripted to fail the first N locates
// or performs.
type mockDriver struct {
	failLocates    int // initial semantic locates that miss
	failPerforms   int // initial performs that fail
	locateCalls    int
	performed      []string
	navigated      []string
	hints          []string // container hints seen by semantic locates
	extractContent string
}

func (d *mockDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *mockDriver) LocateBySemanticText(_ context.Context, text, containerHint string) (driver.ElementRef, error) {
	d.hints = append(d.hints, containerHint)
	d.locateCalls++
	if d.locateCalls <= d.failLocates {
		return nil, driver.ErrNotFound
	}
	return mockRef{desc: text}, nil
}

func (d *mockDriver) LocateByFingerprint(_ context.Context, fp string) (driver.ElementRef, error) {
	d.locateCalls++
	if d.locateCalls <= d.failLocates {
		return nil, driver.ErrNotFound
	}
	return mockRef{desc: fp}, nil
}

func (d *mockDriver) PerformAction(_ context.Context, ref driver.ElementRef, kind driver.ActionKind, value string) error {
	if d.failPerforms > 0 {
		d.failPerforms--
		return errors.New("transient DOM failure")
	}
	d.performed = append(d.performed, string(kind)+":"+ref.Describe()+":"+value)
	return nil
}

func (d *mockDriver) Extract(_ context.Context, _ string) (string, error) {
	return d.extractContent, nil
}

type mockAgent struct {
	tasks []string
	err   error
}

func (a *mockAgent) RunTask(_ context.Context, task string, _ int) (*agent.TaskResult, error) {
	a.tasks = append(a.tasks, task)
	if a.err != nil {
		return nil, a.err
	}
	return &agent.TaskResult{Report: "done", Steps: 2}, nil
}

func newTestEngine(t *testing.T, w *schema.Workflow, drv driver.Driver, ag agent.Client, inputs map[string]string) *Engine {
	t.Helper()
	t.Chdir(t.TempDir())
	eng, err := NewEngine(w, "wf.yaml", drv, ag, inputs, ModeReal)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	eng.Resolver.SettleDelay = time.Millisecond
	return eng
}

func TestRunHappyPath(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "quote",
		InputSchema: []schema.InputDef{
			{Name: "email", Type: schema.TypeString, Required: true},
		},
		Steps: []schema.Step{
			{Type: schema.StepNavigate, URL: "https://example.com/login"},
			{Type: schema.StepInput, TargetText: "Email", Value: "{email}"},
			{Type: schema.StepClick, TargetText: "Submit"},
			{Type: schema.StepExtract, Goal: "Extract the greeting", OutputKey: "greeting"},
		},
	}
	drv := &mockDriver{extractContent: "Welcome back!"}
	eng := newTestEngine(t, w, drv, nil, map[string]string{"email": "alice@example.com"})

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Output["greeting"] != "Welcome back!" {
		t.Errorf("output = %+v", result.Output)
	}
	if result.Summary.Passed != 4 || result.Summary.Failed != 0 {
		t.Errorf("summary = %+v", result.Summary)
	}
	// Placeholder rendered before the driver sees the value.
	if drv.performed[0] != "input:Email:alice@example.com" {
		t.Errorf("performed = %v", drv.performed)
	}
	if drv.navigated[0] != "https://example.com/login" {
		t.Errorf("navigated = %v", drv.navigated)
	}

	if _, err := os.Stat(filepath.Join(eng.BaseDir, "run.yaml")); err != nil {
		t.Errorf("run manifest missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(eng.BaseDir, "trace.jsonl")); err != nil {
		t.Errorf("trace missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(eng.BaseDir, "snapshots", "step-0003.json")); err != nil {
		t.Errorf("final snapshot missing: %v", err)
	}
}

func TestRunEscalatesToAgent(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "esc",
		Steps: []schema.Step{
			{Type: schema.StepClick, TargetText: "Vanished", Description: "Click the filter"},
			{Type: schema.StepExtract, Goal: "Extract the table", OutputKey: "table"},
		},
	}
	// Both locate attempts miss, then the resolver escalates.
	drv := &mockDriver{failLocates: 2, extractContent: "rows"}
	ag := &mockAgent{}
	eng := newTestEngine(t, w, drv, ag, nil)

	result, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(ag.tasks) != 1 {
		t.Fatalf("agent tasks = %v", ag.tasks)
	}
	if !strings.Contains(ag.tasks[0], "Vanished") || !strings.Contains(ag.tasks[0], "Click the filter") {
		t.Errorf("task = %q, want the step description and target woven in", ag.tasks[0])
	}
	if result.Summary.Escalated != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	rec := eng.State.History[0]
	if !rec.Escalated || rec.Strategy != "agentic" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != "passed" {
		t.Errorf("escalated step should pass via the agent: %+v", rec)
	}
	if result.Output["table"] != "rows" {
		t.Errorf("run must continue after successful escalation: %+v", result.Output)
	}
}

func TestRunHaltsWithPartialOutput(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "halt",
		Steps: []schema.Step{
			{Type: schema.StepExtract, Goal: "Extract the header", OutputKey: "header"},
			{Type: schema.StepClick, TargetText: "Gone"},
			{Type: schema.StepExtract, Goal: "Extract the footer", OutputKey: "footer"},
		},
	}
	// No agent: the escalation has nowhere to go and the step fails.
	drv := &mockDriver{failLocates: 2, extractContent: "content"}
	eng := newTestEngine(t, w, drv, nil, nil)

	result, err := eng.Run(context.Background())
	var serr *StepError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want StepError", err)
	}
	if serr.Index != 1 || serr.Type != schema.StepClick {
		t.Errorf("step error = %+v", serr)
	}
	if result.Output["header"] != "content" {
		t.Errorf("partial output lost: %+v", result.Output)
	}
	if _, ok := result.Output["footer"]; ok {
		t.Error("steps after the halt must not run")
	}
	if result.Summary.Failed != 1 || result.Summary.Passed != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
}

func TestRunTransientActionRetry(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "retry",
		Steps:   []schema.Step{{Type: schema.StepClick, TargetText: "Flaky"}},
	}
	drv := &mockDriver{failPerforms: 1}
	eng := newTestEngine(t, w, drv, nil, nil)

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("one transient failure must be retried: %v", err)
	}
	if len(drv.performed) != 1 {
		t.Errorf("performed = %v", drv.performed)
	}
}

func TestRunCancelledAtStepBoundary(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "cancel",
		Steps:   []schema.Step{{Type: schema.StepNavigate, URL: "https://example.com"}},
	}
	eng := newTestEngine(t, w, &mockDriver{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunAgentStep(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "agent",
		Steps: []schema.Step{
			{Type: schema.StepAgent, Task: "Dismiss the cookie banner", MaxSteps: 5},
		},
	}
	ag := &mockAgent{}
	eng := newTestEngine(t, w, &mockDriver{}, ag, nil)

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(ag.tasks) != 1 || ag.tasks[0] != "Dismiss the cookie banner" {
		t.Errorf("tasks = %v", ag.tasks)
	}
	rec := eng.State.History[0]
	if rec.AgentSteps != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.AgentReport != "done" {
		t.Errorf("agent report not persisted on the record: %+v", rec)
	}
}

func TestRunAgentBudgetExhausted(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "budget",
		Steps:   []schema.Step{{Type: schema.StepAgent, Task: "impossible", MaxSteps: 3}},
	}
	ag := &mockAgent{err: &agent.BudgetExceededError{Task: "impossible", MaxSteps: 3}}
	eng := newTestEngine(t, w, &mockDriver{}, ag, nil)

	_, err := eng.Run(context.Background())
	var serr *StepError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want StepError", err)
	}
	if !strings.Contains(serr.Reason, "budget") {
		t.Errorf("reason = %q", serr.Reason)
	}
}

func TestRunRendersContainerHint(t *testing.T) {
	w := &schema.Workflow{
		Version: "1.0.0",
		Name:    "hinted",
		InputSchema: []schema.InputDef{
			{Name: "section", Type: schema.TypeString, Required: true},
		},
		Steps: []schema.Step{
			{Type: schema.StepClick, TargetText: "Details", ContainerHint: "{section}"},
		},
	}
	drv := &mockDriver{}
	eng := newTestEngine(t, w, drv, nil, map[string]string{"section": "Orders"})

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// The hint is a placeholder-admitting field like the target text; the
	// driver must see the bound value, never raw braces.
	if len(drv.hints) != 1 || drv.hints[0] != "Orders" {
		t.Errorf("hints = %v, want the rendered section", drv.hints)
	}
}

func TestRenderStepDoesNotMutateWorkflow(t *testing.T) {
	step := schema.Step{Type: schema.StepInput, TargetText: "Email", Value: "{email}"}
	rendered, err := renderStep(&step, map[string]string{"email": "a@b.io"})
	if err != nil {
		t.Fatalf("renderStep error: %v", err)
	}
	if rendered.Value != "a@b.io" {
		t.Errorf("rendered = %+v", rendered)
	}
	if step.Value != "{email}" {
		t.Error("original step mutated")
	}
}

func TestGenerateRunIDShape(t *testing.T) {
	id := GenerateRunID()
	if len(id) != len("20060102T150405-abcd") {
		t.Errorf("run id = %q", id)
	}
	if !strings.Contains(id, "-") {
		t.Errorf("run id = %q", id)
	}
}
