package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webrun/pkg/agent"
	"github.com/ormasoftchile/webrun/pkg/classifier"
	"github.com/ormasoftchile/webrun/pkg/compiler"
	"github.com/ormasoftchile/webrun/pkg/storage"
	"github.com/ormasoftchile/webrun/pkg/trace"
)

var (
	compileOut         string
	compileName        string
	compileGoal        string
	compileModel       string
	compileAPIKey      string
	compileBaseURL     string
	compileNoLLM       bool
	compileOptimizeNav bool
	compileForce       bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [trace.json]",
	Short: "Compile a recorded browser trace into a workflow",
	Long: `Compile a recorded browser-agent trace into a schema-valid workflow.

Typed values become declared inputs with {placeholder} references; clicked
captions stay constant. When an OpenAI key is available the classifier's
heuristic pass is refined by an LLM suggestion pass; --no-llm skips it.

Credentials are read from (in priority order):
  1. CLI flags (--api-key, --model, --base-url)
  2. Environment variables (OPENAI_API_KEY, WEBRUN_MODEL, OPENAI_BASE_URL)
  3. A .env file in the current directory (gitignored)`,
	Args: cobra.ExactArgs(1),
	RunE: runCompileCmd,
}

func runCompileCmd(cmd *cobra.Command, args []string) error {
	tracePath := args[0]

	if !cmd.Flags().Changed("out") {
		base := strings.TrimSuffix(filepath.Base(tracePath), filepath.Ext(tracePath))
		compileOut = filepath.Join(filepath.Dir(tracePath), base+".workflow.yaml")
	}

	entries, err := trace.LoadFile(tracePath)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	fmt.Printf("Loaded %s (%d entries)\n", tracePath, len(entries))

	var llm classifier.LLMClient
	apiKey := firstNonEmpty(compileAPIKey, os.Getenv("OPENAI_API_KEY"))
	if !compileNoLLM && apiKey != "" {
		model := firstNonEmpty(compileModel, os.Getenv("WEBRUN_MODEL"), "gpt-4o-mini")
		llm = agent.NewOpenAI(apiKey, model, firstNonEmpty(compileBaseURL, os.Getenv("OPENAI_BASE_URL")), nil)
		fmt.Printf("Variable suggestion: %s\n", model)
	} else {
		fmt.Println("Variable suggestion: heuristics only")
	}

	w, err := compiler.Compile(context.Background(), entries, compiler.Options{
		Name:               compileName,
		Goal:               compileGoal,
		TraceFile:          tracePath,
		LLM:                llm,
		OptimizeNavigation: compileOptimizeNav,
	})
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	store, err := storage.NewStore(filepath.Dir(compileOut))
	if err != nil {
		return err
	}
	if err := store.Save(filepath.Base(compileOut), w, compileForce); err != nil {
		return err
	}

	fmt.Printf("✓ %s: %d steps, %d inputs", compileOut, len(w.Steps), len(w.InputSchema))
	if len(w.OutputSchema) > 0 {
		fmt.Printf(", %d outputs", len(w.OutputSchema))
	}
	fmt.Println()
	for _, in := range w.InputSchema {
		fmt.Printf("  {%s} %s", in.Name, in.Type)
		if in.Format != "" {
			fmt.Printf(" (%s)", in.Format)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	compileCmd.Flags().StringVar(&compileOut, "out", "", "Output path (default: alongside the trace)")
	compileCmd.Flags().StringVar(&compileName, "name", "", "Workflow name (default: derived from the trace)")
	compileCmd.Flags().StringVar(&compileGoal, "goal", "", "What the workflow accomplishes")
	compileCmd.Flags().StringVar(&compileModel, "model", "", "Model for variable suggestion (overrides WEBRUN_MODEL)")
	compileCmd.Flags().StringVar(&compileAPIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY)")
	compileCmd.Flags().StringVar(&compileBaseURL, "base-url", "", "OpenAI-compatible API base URL (overrides OPENAI_BASE_URL)")
	compileCmd.Flags().BoolVar(&compileNoLLM, "no-llm", false, "Skip the LLM variable suggestion pass")
	compileCmd.Flags().BoolVar(&compileOptimizeNav, "optimize-nav", false, "Collapse consecutive navigations into the final one")
	compileCmd.Flags().BoolVar(&compileForce, "force", false, "Overwrite even when the recompile drops most steps")
}
