package testing

// TestResult captures the outcome of running one scenario against a spec.
type TestResult struct {
	WorkflowName string             `json:"workflow_name"`
	ScenarioName string             `json:"scenario_name"`
	ScenarioDir  string             `json:"scenario_dir"`
	Status       string             `json:"status"` // passed, failed, skipped, error
	DurationMs   int64              `json:"duration_ms"`
	Outcome      *OutcomeComparison `json:"outcome,omitempty"`
	Assertions   []AssertionResult  `json:"assertions"`
	Error        string             `json:"error,omitempty"`
}

// OutcomeComparison pairs expected and actual outcome values.
type OutcomeComparison struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// AssertionResult is the outcome of a single assertion check.
type AssertionResult struct {
	Type     string `json:"type"`          // expected_outcome, expected_output, expected_step_status, max_escalations
	Key      string `json:"key,omitempty"` // output key or step index
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// TestSummary aggregates results across scenarios.
type TestSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// TestOutput is the top-level JSON structure for webrun test --json.
type TestOutput struct {
	Workflow  string       `json:"workflow"`
	Scenarios []TestResult `json:"scenarios"`
	Summary   TestSummary  `json:"summary"`
}

// Observation holds the execution data collected from one replay run,
// used as input to the assertion evaluator.
type Observation struct {
	Outcome      string            // succeeded or failed
	Outputs      map[string]string // aggregated extraction output
	StepStatuses map[int]string    // step index to final status
	Escalations  int               // steps that fell through to the agent
}
