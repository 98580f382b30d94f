package runtime

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/webrun/pkg/agent"
	"github.com/ormasoftchile/webrun/pkg/driver"
	"github.com/ormasoftchile/webrun/pkg/governance"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/targeting"
	"github.com/ormasoftchile/webrun/pkg/template"
)

// GenerateRunID creates a run ID in format YYYYMMDDTHHmmss-xxxx.
func GenerateRunID() string {
	ts := time.Now().Format("20060102T150405")
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%x", ts, suffix)
}

const (
	// escalationBudget bounds the agent when a step escalates at run time
	// (compiled agent steps carry their own max_steps).
	escalationBudget = 10

	// transientRetryDelay is the pause before the single action retry.
	transientRetryDelay = 500 * time.Millisecond
)

// Engine executes one workflow run. One engine owns one driver session and
// is used once.
type Engine struct {
	Workflow *schema.Workflow
	State    *RunState
	Driver   driver.Driver
	Agent    agent.Client // nil disables escalation and agent steps
	Resolver *targeting.Resolver
	Trace    *TraceWriter
	Redact   *governance.Redactor // nil when no secret inputs are declared
	BaseDir  string               // .webrun/runs/<run_id>/

	counts StepsSummary
}

// NewEngine prepares a run: creates the run directory, opens the trace,
// and snapshots nothing yet. inputs must already be bound and validated.
func NewEngine(w *schema.Workflow, workflowPath string, drv driver.Driver, ag agent.Client, inputs map[string]string, mode string) (*Engine, error) {
	runID := GenerateRunID()
	baseDir := filepath.Join(".webrun", "runs", runID)
	if err := os.MkdirAll(filepath.Join(baseDir, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	trace, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"), runID)
	if err != nil {
		return nil, fmt.Errorf("create trace writer: %w", err)
	}

	if inputs == nil {
		inputs = make(map[string]string)
	}
	state := &RunState{
		RunID:        runID,
		WorkflowPath: workflowPath,
		Mode:         mode,
		StartedAt:    time.Now(),
		Inputs:       inputs,
		Output:       make(map[string]string),
	}

	return &Engine{
		Workflow: w,
		State:    state,
		Driver:   drv,
		Agent:    ag,
		Resolver: &targeting.Resolver{Driver: drv},
		Trace:    trace,
		Redact:   governance.NewRedactor(w.InputSchema, inputs),
		BaseDir:  baseDir,
	}, nil
}

// Run executes every step in order. The run halts on the first failed
// step; output extracted before the halt survives in the result. The
// context is checked at step boundaries only, so a step in flight always
// completes or fails on its own terms.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	defer e.Trace.Close()

	for i := e.State.CurrentStepIndex; i < len(e.Workflow.Steps); i++ {
		if err := ctx.Err(); err != nil {
			e.writeManifest("cancelled", 0)
			return e.result(), err
		}

		step := &e.Workflow.Steps[i]
		e.State.CurrentStepIndex = i
		record := e.executeStep(ctx, i, step)
		record.Error = e.Redact.Redact(record.Error)
		record.AgentReport = e.Redact.Redact(record.AgentReport)

		if record.Status == "failed" || record.Escalated {
			e.captureEvidence(ctx, i)
		}

		e.State.History = append(e.State.History, record)
		if err := e.Trace.Write(record); err != nil {
			return e.result(), fmt.Errorf("write trace for step %d: %w", i, err)
		}
		snapshotPath := filepath.Join(e.BaseDir, "snapshots", fmt.Sprintf("step-%04d.json", i))
		if err := SaveSnapshot(e.State, snapshotPath); err != nil {
			return e.result(), fmt.Errorf("save snapshot for step %d: %w", i, err)
		}

		e.counts.Total++
		if record.Escalated {
			e.counts.Escalated++
		}
		if record.Status == "failed" {
			e.counts.Failed++
			e.writeManifest("failed", i)
			return e.result(), &StepError{Index: i, Type: step.Type, Reason: record.Error}
		}
		e.counts.Passed++
	}

	e.writeManifest("succeeded", 0)
	return e.result(), nil
}

func (e *Engine) result() *RunResult {
	return &RunResult{RunID: e.State.RunID, Output: e.State.Output, Summary: e.counts}
}

// executeStep runs one step and never returns an error: failures land in
// the record so the caller owns halt semantics.
func (e *Engine) executeStep(ctx context.Context, index int, step *schema.Step) *StepRecord {
	record := &StepRecord{
		Index:       index,
		Type:        step.Type,
		Description: step.Description,
		Status:      "passed",
		StartedAt:   time.Now(),
	}
	fail := func(format string, args ...any) *StepRecord {
		record.Status = "failed"
		record.Error = fmt.Sprintf(format, args...)
		record.EndedAt = time.Now()
		return record
	}
	defer func() { record.EndedAt = time.Now() }()

	rendered, err := renderStep(step, e.State.Inputs)
	if err != nil {
		return fail("render placeholders: %v", err)
	}

	if rendered.Timeout != "" {
		d, err := time.ParseDuration(rendered.Timeout)
		if err != nil {
			return fail("parse timeout %q: %v", rendered.Timeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	switch rendered.Type {
	case schema.StepNavigate:
		if err := e.withRetry(ctx, func() error {
			return e.Driver.Navigate(ctx, rendered.URL)
		}); err != nil {
			return fail("navigate %s: %v", rendered.URL, err)
		}
		return record

	case schema.StepInput, schema.StepClick, schema.StepKeypress, schema.StepSelectChange:
		return e.executeTargeted(ctx, rendered, record, fail)

	case schema.StepExtract:
		content, err := e.Driver.Extract(ctx, rendered.Goal)
		if err != nil {
			return fail("extract %q: %v", rendered.Goal, err)
		}
		key := rendered.OutputKey
		if key == "" {
			key = fmt.Sprintf("output_%d", index)
		}
		e.State.Output[key] = content
		return record

	case schema.StepAgent:
		return e.executeAgent(ctx, rendered.Task, rendered.MaxSteps, record, fail)
	}
	return fail("unknown step type %q", rendered.Type)
}

// executeTargeted resolves the step's target and performs its action,
// escalating to the agent when resolution gives up.
func (e *Engine) executeTargeted(ctx context.Context, step *schema.Step, record *StepRecord, fail func(string, ...any) *StepRecord) *StepRecord {
	res, err := e.Resolver.Resolve(ctx, step)
	if err != nil {
		return fail("resolve target: %v", err)
	}
	record.Attempts = res.Attempts
	record.Strategy = strategyName(res.State)

	if !res.Resolved() {
		record.Escalated = true
		task := escalationTask(step, res.Reason)
		return e.executeAgent(ctx, task, escalationBudget, record, fail)
	}

	kind, value := actionFor(step)
	if err := e.Driver.PerformAction(ctx, res.Ref, kind, value); err != nil {
		// One transient retry with a fresh resolution; the first ref may
		// have gone stale between locate and act.
		if serr := sleepCtx(ctx, transientRetryDelay); serr != nil {
			return fail("%v", serr)
		}
		res, rerr := e.Resolver.Resolve(ctx, step)
		if rerr != nil || !res.Resolved() {
			return fail("%s failed and target did not re-resolve: %v", kind, err)
		}
		record.Attempts += res.Attempts
		if err := e.Driver.PerformAction(ctx, res.Ref, kind, value); err != nil {
			return fail("%s %s: %v", kind, res.Ref.Describe(), err)
		}
	}
	return record
}

func (e *Engine) executeAgent(ctx context.Context, task string, budget int, record *StepRecord, fail func(string, ...any) *StepRecord) *StepRecord {
	record.Strategy = "agentic"
	if e.Agent == nil {
		return fail("step needs the agent but none is configured")
	}
	result, err := e.Agent.RunTask(ctx, task, budget)
	if err != nil {
		var berr *agent.BudgetExceededError
		if errors.As(err, &berr) {
			return fail("agent budget exhausted after %d steps", berr.MaxSteps)
		}
		return fail("agent task: %v", err)
	}
	record.AgentSteps = result.Steps
	record.AgentReport = result.Report
	return record
}

// captureEvidence saves a screenshot of the page a step failed or
// escalated on. Best effort: scripted drivers have no pixels, and a
// capture failure must not change the run outcome.
func (e *Engine) captureEvidence(ctx context.Context, index int) {
	shooter, ok := e.Driver.(driver.Screenshotter)
	if !ok {
		return
	}
	data, err := shooter.Screenshot(ctx)
	if err != nil {
		return
	}
	dir := filepath.Join(e.BaseDir, "evidence")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, fmt.Sprintf("step-%04d.png", index)), data, 0644)
}

// withRetry runs fn and retries once after a short pause.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if serr := sleepCtx(ctx, transientRetryDelay); serr != nil {
		return serr
	}
	return fn()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// renderStep substitutes bound inputs into every placeholder-bearing field
// of a copy of the step. The workflow itself is never mutated.
func renderStep(step *schema.Step, inputs map[string]string) (*schema.Step, error) {
	rendered := *step
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"url", &rendered.URL},
		{"target_text", &rendered.TargetText},
		{"container_hint", &rendered.ContainerHint},
		{"value", &rendered.Value},
		{"selected_text", &rendered.SelectedText},
		{"goal", &rendered.Goal},
		{"task", &rendered.Task},
	} {
		if *f.value == "" {
			continue
		}
		out, err := template.Render(*f.value, inputs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = out
	}
	return &rendered, nil
}

// escalationTask synthesizes an on-the-fly agent instruction for a step
// whose deterministic target could not be resolved.
func escalationTask(step *schema.Step, reason string) string {
	desc := step.Description
	if desc == "" {
		desc = fmt.Sprintf("Perform the recorded %s action", step.Type)
	}
	var detail string
	switch step.Type {
	case schema.StepInput:
		detail = fmt.Sprintf(" Type %q into the field labeled %q.", step.Value, step.TargetText)
	case schema.StepSelectChange:
		detail = fmt.Sprintf(" Choose %q in the dropdown labeled %q.", step.SelectedText, step.TargetText)
	case schema.StepKeypress:
		detail = fmt.Sprintf(" Press %s on the element labeled %q.", step.Key, step.TargetText)
	case schema.StepClick:
		if step.TargetText != "" {
			detail = fmt.Sprintf(" Click the element labeled %q.", step.TargetText)
		}
	}
	return fmt.Sprintf("%s.%s Deterministic replay could not locate the target (%s); complete this step on the current page.",
		desc, detail, reason)
}

func actionFor(step *schema.Step) (driver.ActionKind, string) {
	switch step.Type {
	case schema.StepInput:
		return driver.ActionInput, step.Value
	case schema.StepKeypress:
		return driver.ActionKeypress, step.Key
	case schema.StepSelectChange:
		return driver.ActionSelect, step.SelectedText
	}
	return driver.ActionClick, ""
}

func strategyName(s targeting.State) string {
	switch s {
	case targeting.StateTrySemantic:
		return "semantic"
	case targeting.StateTryFingerprint:
		return "fingerprint"
	}
	return "agentic"
}

// writeManifest persists run.yaml. Best effort: a manifest write failure
// must not mask the run outcome.
func (e *Engine) writeManifest(outcome string, failedStep int) {
	manifest := RunManifest{
		RunID:        e.State.RunID,
		Workflow:     e.State.WorkflowPath,
		Mode:         e.State.Mode,
		StartedAt:    e.State.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:      time.Now().UTC().Format(time.RFC3339),
		Outcome:      outcome,
		Inputs:       e.Redact.MaskInputs(e.State.Inputs),
		Output:       e.State.Output,
		StepsSummary: e.counts,
	}
	if outcome == "failed" {
		manifest.FailedStep = failedStep
	}
	data, err := yaml.Marshal(&manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime: marshal manifest: %v\n", err)
		return
	}
	if err := os.WriteFile(filepath.Join(e.BaseDir, "run.yaml"), data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "runtime: write manifest: %v\n", err)
	}
}
