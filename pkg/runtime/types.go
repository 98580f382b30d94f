// Package runtime executes a compiled workflow against a browser driver,
// with deterministic targeting, bounded retries, and agent escalation.
package runtime

import (
	"fmt"
	"time"
)

// Run modes.
const (
	ModeReal   = "real"
	ModeReplay = "replay"
)

// RunState is the complete execution state at a point in time. Serialized
// to JSON for snapshot persistence.
type RunState struct {
	RunID            string            `json:"run_id"`
	WorkflowPath     string            `json:"workflow_path"`
	Mode             string            `json:"mode"`
	StartedAt        time.Time         `json:"started_at"`
	CurrentStepIndex int               `json:"current_step_index"`
	Inputs           map[string]string `json:"inputs"`
	Output           map[string]string `json:"output"`
	History          []*StepRecord     `json:"history"`
}

// StepRecord is the execution record of one workflow step.
type StepRecord struct {
	Index       int       `json:"index"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`              // passed, failed
	Strategy    string    `json:"strategy,omitempty"`  // semantic, fingerprint, agentic
	Escalated   bool      `json:"escalated,omitempty"` // deterministic targeting gave up
	Attempts    int       `json:"attempts,omitempty"`  // locate attempts issued
	AgentSteps  int       `json:"agent_steps,omitempty"`
	AgentReport string    `json:"agent_report,omitempty"` // the agent's closing report, may carry extracted content
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// TraceEvent wraps a StepRecord for JSONL trace output.
type TraceEvent struct {
	Type      string      `json:"type"` // step_record
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Record    *StepRecord `json:"record"`
}

// RunManifest records the complete metadata for one run. Written as
// run.yaml after the run completes or fails.
type RunManifest struct {
	RunID        string            `yaml:"run_id"                json:"run_id"`
	Workflow     string            `yaml:"workflow"              json:"workflow"`
	Mode         string            `yaml:"mode"                  json:"mode"`
	StartedAt    string            `yaml:"started_at"            json:"started_at"`
	EndedAt      string            `yaml:"ended_at"              json:"ended_at"`
	Outcome      string            `yaml:"outcome"               json:"outcome"` // succeeded, failed, cancelled
	FailedStep   int               `yaml:"failed_step,omitempty" json:"failed_step,omitempty"`
	Inputs       map[string]string `yaml:"inputs,omitempty"      json:"inputs,omitempty"`
	Output       map[string]string `yaml:"output,omitempty"      json:"output,omitempty"`
	StepsSummary StepsSummary      `yaml:"steps_summary"         json:"steps_summary"`
}

// StepsSummary counts step records by outcome.
type StepsSummary struct {
	Total     int `yaml:"total"     json:"total"`
	Passed    int `yaml:"passed"    json:"passed"`
	Failed    int `yaml:"failed"    json:"failed"`
	Escalated int `yaml:"escalated" json:"escalated"`
}

// StepError reports the step a run halted on. Output collected before the
// failure survives in the RunResult.
type StepError struct {
	Index  int
	Type   string
	Reason string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Index, e.Type, e.Reason)
}

// RunResult is the terminal outcome of a run: the aggregated extraction
// output plus per-step accounting. On failure Output holds everything
// extracted before the halt.
type RunResult struct {
	RunID   string
	Output  map[string]string
	Summary StepsSummary
}
