package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/webrun/pkg/inputs"
	"github.com/ormasoftchile/webrun/pkg/replay"
	"github.com/ormasoftchile/webrun/pkg/runtime"
	"github.com/ormasoftchile/webrun/pkg/schema"
)

// Runner discovers and executes scenario tests for a workflow.
type Runner struct {
	Timeout time.Duration // per-scenario timeout
}

// ScenarioInfo describes a discovered scenario directory.
type ScenarioInfo struct {
	Name    string // directory name (e.g. "happy-path")
	Dir     string // path to the scenario directory
	HasTest bool   // whether test.yaml exists
}

// DiscoverScenarios finds scenario directories for a workflow by
// convention: {workflow-dir}/scenarios/{workflow-name}/*/scenario.yaml.
func DiscoverScenarios(workflowPath string) ([]ScenarioInfo, error) {
	dir := filepath.Dir(workflowPath)
	base := filepath.Base(workflowPath)
	name := strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), ".workflow")

	scenariosBase := filepath.Join(dir, "scenarios", name)
	entries, err := os.ReadDir(scenariosBase)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no scenarios directory, nothing to test
		}
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}

	var scenarios []ScenarioInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		scenDir := filepath.Join(scenariosBase, entry.Name())
		if _, err := os.Stat(filepath.Join(scenDir, "scenario.yaml")); err != nil {
			continue
		}
		hasTest := false
		if _, err := os.Stat(filepath.Join(scenDir, "test.yaml")); err == nil {
			hasTest = true
		}
		scenarios = append(scenarios, ScenarioInfo{
			Name:    entry.Name(),
			Dir:     scenDir,
			HasTest: hasTest,
		})
	}
	return scenarios, nil
}

// RunAll executes all scenarios for a workflow and returns test results.
func (r *Runner) RunAll(workflowPath string, failFast bool) (*TestOutput, error) {
	w, errs := schema.ValidateFile(workflowPath)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("workflow validation failed: %s", errs[0].Error())
	}

	scenarios, err := DiscoverScenarios(workflowPath)
	if err != nil {
		return nil, err
	}

	output := &TestOutput{Workflow: w.Name}
	for _, scenario := range scenarios {
		result := r.runScenario(workflowPath, w, scenario)
		output.Scenarios = append(output.Scenarios, result)

		switch result.Status {
		case "passed":
			output.Summary.Passed++
		case "failed":
			output.Summary.Failed++
		case "skipped":
			output.Summary.Skipped++
		case "error":
			output.Summary.Errors++
		}
		output.Summary.Total++

		if failFast && (result.Status == "failed" || result.Status == "error") {
			break
		}
	}
	return output, nil
}

// RunScenario executes a single named scenario for a workflow.
func (r *Runner) RunScenario(workflowPath, scenarioName string) (*TestResult, error) {
	w, errs := schema.ValidateFile(workflowPath)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("workflow validation failed: %s", errs[0].Error())
	}

	scenarios, err := DiscoverScenarios(workflowPath)
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if s.Name == scenarioName {
			result := r.runScenario(workflowPath, w, s)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", scenarioName)
}

func (r *Runner) runScenario(workflowPath string, w *schema.Workflow, scenario ScenarioInfo) TestResult {
	start := time.Now()
	result := TestResult{
		WorkflowName: w.Name,
		ScenarioName: scenario.Name,
		ScenarioDir:  scenario.Dir,
	}

	if !scenario.HasTest {
		result.Status = "skipped"
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	spec, err := LoadTestSpec(filepath.Join(scenario.Dir, "test.yaml"))
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("load test.yaml: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	obs, err := r.executeReplay(workflowPath, scenario)
	if err != nil {
		result.Status = "error"
		result.Error = fmt.Sprintf("replay: %v", err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	if spec.ExpectedOutcome != "" {
		result.Outcome = &OutcomeComparison{
			Expected: spec.ExpectedOutcome,
			Actual:   obs.Outcome,
		}
	}
	result.Assertions = Evaluate(spec, obs)
	if HasFailures(result.Assertions) {
		result.Status = "failed"
	} else {
		result.Status = "passed"
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (r *Runner) executeReplay(workflowPath string, scenario ScenarioInfo) (*Observation, error) {
	// Re-parse so a previous scenario cannot leak state into this one.
	w, errs := schema.ValidateFile(workflowPath)
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("validation: %s", errs[0].Error())
	}

	provided, err := loadInputs(filepath.Join(scenario.Dir, "inputs.yaml"))
	if err != nil {
		return nil, err
	}
	bound, err := inputs.Bind(w, provided, inputs.Options{})
	if err != nil {
		return nil, fmt.Errorf("bind inputs: %w", err)
	}

	sc, err := replay.LoadScenario(filepath.Join(scenario.Dir, "scenario.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	eng, err := runtime.NewEngine(w, workflowPath, replay.NewScenarioDriver(sc), nil, bound.Values, runtime.ModeReplay)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	result, runErr := eng.Run(ctx)

	obs := &Observation{
		Outcome:      "succeeded",
		Outputs:      result.Output,
		StepStatuses: make(map[int]string),
		Escalations:  result.Summary.Escalated,
	}
	for _, h := range eng.State.History {
		obs.StepStatuses[h.Index] = h.Status
	}

	if runErr != nil {
		var serr *runtime.StepError
		if !errors.As(runErr, &serr) {
			// Timeout or cancellation, not a workflow outcome.
			return nil, runErr
		}
		obs.Outcome = "failed"
	}
	return obs, nil
}

// loadInputs reads an optional inputs.yaml, coercing scalar values to
// their string representation.
func loadInputs(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse inputs: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}
