package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ormasoftchile/webrun/pkg/agent"
	"github.com/ormasoftchile/webrun/pkg/driver"
	"github.com/ormasoftchile/webrun/pkg/governance"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/targeting"
)

// LatestSnapshot returns the path of the most recent state snapshot for a
// run, or an error when the run has none.
func LatestSnapshot(runID string) (string, error) {
	dir := filepath.Join(".webrun", "runs", runID, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read snapshots for run %s: %w", runID, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "step-") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("run %s has no snapshots", runID)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// ResumeEngine rebuilds an engine from a run's last snapshot. A run that
// halted on a failed step retries that step; a cancelled run continues at
// the step after the last completed one. The trace file is appended to,
// never rewritten.
func ResumeEngine(w *schema.Workflow, runID string, drv driver.Driver, ag agent.Client) (*Engine, error) {
	snapPath, err := LatestSnapshot(runID)
	if err != nil {
		return nil, err
	}
	state, err := LoadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	// Snapshots are taken after a step completes, so the index advances
	// past it unless the step is the one that failed.
	var counts StepsSummary
	retryFailed := false
	for _, h := range state.History {
		counts.Total++
		switch {
		case h.Status == "failed":
			retryFailed = true
		case h.Escalated:
			counts.Escalated++
			counts.Passed++
		default:
			counts.Passed++
		}
	}
	if retryFailed {
		// Drop the failed record; the retry writes a fresh one.
		counts.Total--
		state.History = state.History[:len(state.History)-1]
	} else {
		state.CurrentStepIndex++
	}
	if state.CurrentStepIndex >= len(w.Steps) {
		return nil, fmt.Errorf("run %s already completed all %d steps", runID, len(w.Steps))
	}

	baseDir := filepath.Join(".webrun", "runs", runID)
	trace, err := NewTraceWriter(filepath.Join(baseDir, "trace.jsonl"), runID)
	if err != nil {
		return nil, fmt.Errorf("reopen trace: %w", err)
	}

	return &Engine{
		Workflow: w,
		State:    state,
		Driver:   drv,
		Agent:    ag,
		Resolver: &targeting.Resolver{Driver: drv},
		Trace:    trace,
		Redact:   governance.NewRedactor(w.InputSchema, state.Inputs),
		BaseDir:  baseDir,
		counts:   counts,
	}, nil
}
