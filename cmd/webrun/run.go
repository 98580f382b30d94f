package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webrun/pkg/agent"
	"github.com/ormasoftchile/webrun/pkg/driver"
	"github.com/ormasoftchile/webrun/pkg/inputs"
	"github.com/ormasoftchile/webrun/pkg/replay"
	"github.com/ormasoftchile/webrun/pkg/runtime"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/template"
)

var (
	runMode        string
	runScenario    string
	runVars        []string
	runHeadless    bool
	runUserDataDir string
	runRecord      string
	runNoAgent     bool
	runModel       string
	runResume      string
)

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	stylePass      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleFail      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleEscalated = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var runCmd = &cobra.Command{
	Use:   "run [workflow.yaml]",
	Short: "Execute a workflow",
	Long: `Execute a compiled workflow step by step.

Steps target elements by visible text first, then by recorded fingerprint.
When both miss, the step escalates to a bounded agent (requires
OPENAI_API_KEY) and the run continues if the agent recovers.

Modes:
  real    drive a Chromium browser (default)
  replay  replay offline against a recorded scenario (--scenario)`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	w, errs := schema.ValidateFile(filePath)
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return fmt.Errorf("workflow validation failed")
	}

	provided := make(map[string]string)
	for _, v := range runVars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		provided[parts[0]] = parts[1]
	}

	// A resumed run reuses the inputs persisted in its snapshot.
	var values map[string]string
	if runResume == "" {
		bound, err := inputs.Bind(w, provided, inputs.Options{Prompter: inputs.ReadlinePrompter{}})
		if err != nil {
			return fmt.Errorf("bind inputs: %w", err)
		}
		for _, warn := range bound.Warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ %s\n", warn)
		}
		values = bound.Values
	}

	ctx := context.Background()

	var drv driver.Driver
	var rec *replay.Recorder
	switch runMode {
	case "real":
		rod, err := driver.NewRod(ctx, driver.RodOptions{
			Headless:    runHeadless,
			UserDataDir: runUserDataDir,
		})
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer rod.Close()
		drv = rod
		if runRecord != "" {
			rec = replay.NewRecorder(rod)
			drv = rec
		}
	case "replay":
		if runScenario == "" {
			return fmt.Errorf("--scenario is required for replay mode")
		}
		scenario, err := replay.LoadScenario(runScenario)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		sd := replay.NewScenarioDriver(scenario)
		drv = sd
		fmt.Printf("  [replay] Loaded %s (%d pages, %d elements, %d extracts)\n",
			runScenario, len(scenario.Navigations), len(scenario.Elements), len(scenario.Extracts))
	default:
		return fmt.Errorf("unknown mode: %q", runMode)
	}

	var ag agent.Client
	apiKey := os.Getenv("OPENAI_API_KEY")
	if runMode == "real" && !runNoAgent && apiKey != "" {
		model := firstNonEmpty(runModel, os.Getenv("WEBRUN_MODEL"), "gpt-4o-mini")
		ag = agent.NewOpenAI(apiKey, model, os.Getenv("OPENAI_BASE_URL"), drv)
	}

	var eng *runtime.Engine
	var err error
	if runResume != "" {
		eng, err = runtime.ResumeEngine(w, runResume, drv, ag)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
	} else {
		eng, err = runtime.NewEngine(w, filePath, drv, ag, values, runMode)
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}
	}

	fmt.Println(styleHeader.Render(w.Name))
	fmt.Printf("Run ID: %s\n", eng.State.RunID)
	fmt.Printf("Mode: %s\n", runMode)
	if ag == nil {
		fmt.Println(styleDim.Render("Agent escalation: disabled"))
	}
	masked := eng.Redact.MaskInputs(eng.State.Inputs)
	for _, name := range template.SortedNames(masked) {
		fmt.Printf("  %s = %s\n", name, masked[name])
	}

	result, runErr := eng.Run(ctx)
	printRunHistory(eng)
	printRunResult(result, runErr)

	if runErr != nil {
		var serr *runtime.StepError
		if errors.As(runErr, &serr) {
			os.Exit(1)
		}
		return runErr
	}

	if rec != nil {
		if err := rec.Scenario.Save(runRecord); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record scenario: %v\n", err)
		} else {
			fmt.Printf("  Scenario recorded: %s\n", runRecord)
		}
	}
	return nil
}

func printRunHistory(eng *runtime.Engine) {
	for _, r := range eng.State.History {
		mark := stylePass.Render("✓")
		if r.Status == "failed" {
			mark = styleFail.Render("✗")
		} else if r.Escalated {
			mark = styleEscalated.Render("↯")
		}
		line := fmt.Sprintf("  %s %2d %-20s %s", mark, r.Index, r.Type, r.Description)
		if r.Strategy != "" {
			line += styleDim.Render("  [" + r.Strategy + "]")
		}
		if r.Escalated {
			line += styleEscalated.Render(fmt.Sprintf("  agent recovered in %d steps", r.AgentSteps))
		}
		fmt.Println(line)
		if r.Error != "" {
			fmt.Println(styleFail.Render("      " + r.Error))
		}
	}
}

func printRunResult(result *runtime.RunResult, runErr error) {
	s := result.Summary
	line := fmt.Sprintf("%d steps, %d passed, %d failed, %d escalated",
		s.Total, s.Passed, s.Failed, s.Escalated)
	if runErr != nil {
		fmt.Println(styleFail.Render("Run failed: " + line))
		fmt.Println(styleFail.Render("  " + runErr.Error()))
	} else {
		fmt.Println(stylePass.Render("Run succeeded: " + line))
	}

	if len(result.Output) > 0 {
		fmt.Println(styleHeader.Render("Output"))
		for _, key := range template.SortedNames(result.Output) {
			fmt.Printf("  %s: %s\n", key, result.Output[key])
		}
	}
	fmt.Printf("  Manifest: .webrun/runs/%s/run.yaml\n", result.RunID)
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "real", "Execution mode: real or replay")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Path to scenario YAML (required for replay)")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set an input (name=value), repeatable")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "Run the browser headless")
	runCmd.Flags().StringVar(&runUserDataDir, "user-data-dir", "", "Browser profile directory (keeps sessions)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Save the run as a replayable scenario to this file")
	runCmd.Flags().BoolVar(&runNoAgent, "no-agent", false, "Disable agent escalation")
	runCmd.Flags().StringVar(&runModel, "model", "", "Agent model (overrides WEBRUN_MODEL)")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Run ID to resume from its last snapshot")
}
