// Package agent is the reasoning collaborator: it carries out a natural
// language task against the live page when a workflow step was compiled as
// agentic or escalated at run time.
package agent

import (
	"context"
	"fmt"
)

// TaskResult is the outcome of one delegated task.
type TaskResult struct {
	Report string // the agent's final report
	Steps  int    // reasoning turns consumed
}

// Client runs one bounded task. maxSteps caps reasoning turns; exceeding
// it returns a BudgetExceededError.
type Client interface {
	RunTask(ctx context.Context, task string, maxSteps int) (*TaskResult, error)
}

// BudgetExceededError reports a task that did not finish within its step
// budget.
type BudgetExceededError struct {
	Task     string
	MaxSteps int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("task %q not finished within %d steps", e.Task, e.MaxSteps)
}
