package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	runtest "github.com/ormasoftchile/webrun/pkg/testing"
)

var (
	testScenario string
	testJSON     bool
	testFailFast bool
	testTimeout  string
)

var testCmd = &cobra.Command{
	Use:   "test [workflow.yaml...]",
	Short: "Replay scenario tests for workflows",
	Long: `Discover scenarios for each workflow, replay them offline, and compare
against test.yaml assertions.

Scenarios are discovered by convention at:
  {workflow-dir}/scenarios/{workflow-name}/*/scenario.yaml

Only scenarios with a test.yaml file are asserted. Scenarios without
test.yaml are reported as skipped.

Exit codes:
  0  all asserted tests passed
  1  at least one asserted test failed
  2  workflow validation failed (no tests ran)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	timeout := 30 * time.Second
	if testTimeout != "" {
		d, err := time.ParseDuration(testTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", testTimeout, err)
		}
		timeout = d
	}

	runner := &runtest.Runner{Timeout: timeout}
	allPassed := true
	hasValidationError := false

	for _, workflowPath := range args {
		var output *runtest.TestOutput
		var err error
		if testScenario != "" {
			var result *runtest.TestResult
			result, err = runner.RunScenario(workflowPath, testScenario)
			if err == nil {
				output = &runtest.TestOutput{Workflow: result.WorkflowName, Scenarios: []runtest.TestResult{*result}}
				output.Summary.Total = 1
				switch result.Status {
				case "passed":
					output.Summary.Passed = 1
				case "failed":
					output.Summary.Failed = 1
				case "skipped":
					output.Summary.Skipped = 1
				case "error":
					output.Summary.Errors = 1
				}
			}
		} else {
			output, err = runner.RunAll(workflowPath, testFailFast)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", workflowPath, err)
			hasValidationError = true
			continue
		}

		if testJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(output)
		} else {
			printTestOutput(output)
		}

		if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
			allPassed = false
		}
		if testFailFast && !allPassed {
			break
		}
	}

	if hasValidationError {
		os.Exit(2)
	}
	if !allPassed {
		os.Exit(1)
	}
	return nil
}

func printTestOutput(output *runtest.TestOutput) {
	fmt.Printf("\n  %s\n", output.Workflow)
	for _, s := range output.Scenarios {
		switch s.Status {
		case "passed":
			outcome := ""
			if s.Outcome != nil {
				outcome = s.Outcome.Actual
			}
			fmt.Printf("    ✓ %-30s (%s)  %dms\n", s.ScenarioName, outcome, s.DurationMs)
		case "failed":
			outcome := ""
			if s.Outcome != nil {
				outcome = fmt.Sprintf("expected: %s, got: %s", s.Outcome.Expected, s.Outcome.Actual)
			}
			fmt.Printf("    ✗ %-30s (%s)  %dms\n", s.ScenarioName, outcome, s.DurationMs)
			for _, a := range s.Assertions {
				if !a.Passed {
					fmt.Printf("        %s: %s\n", a.Type, a.Message)
				}
			}
		case "skipped":
			fmt.Printf("    ○ %-30s (no test.yaml)  %dms\n", s.ScenarioName, s.DurationMs)
		case "error":
			fmt.Printf("    ✗ %-30s ERROR: %s\n", s.ScenarioName, s.Error)
		}
	}
	fmt.Printf("\n  %d scenarios, %d passed, %d failed, %d skipped\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed, output.Summary.Skipped)
	if output.Summary.Errors > 0 {
		fmt.Printf("  %d errors\n", output.Summary.Errors)
	}
}

func init() {
	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Run only the named scenario (default: all)")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTimeout, "timeout", "30s", "Per-scenario timeout (e.g. 30s, 1m)")
	rootCmd.AddCommand(testCmd)
}
