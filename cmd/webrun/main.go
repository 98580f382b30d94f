package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/storage"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// .env is gitignored; secrets like OPENAI_API_KEY live there.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webrun",
	Short: "Compile recorded browser traces into replayable workflows",
	Long:  "webrun compiles one-off browser-agent traces into parameterized, deterministic workflows and runs them without an LLM in the loop.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate a workflow file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".jsonl" {
		return fmt.Errorf("%s looks like a recorded trace, not a workflow.\nDid you mean: webrun compile %s --out workflow.yaml", filePath, filePath)
	}

	w, errs := schema.ValidateFile(filePath)
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", countValidationErrors(errs))
		i := 0
		for _, e := range errs {
			if e.Severity == "warning" {
				continue
			}
			i++
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", countValidationErrors(errs))
	}
	fmt.Printf("✓ %s is valid (%d steps, %d inputs)\n", w.Name, len(w.Steps), len(w.InputSchema))
	return nil
}

// --- list ---

var listDir string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows in the workflow directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStore(listDir)
		if err != nil {
			return err
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Printf("No workflows in %s\n", listDir)
			return nil
		}
		for _, name := range names {
			w, err := store.Load(name)
			if err != nil {
				fmt.Printf("  %-30s (invalid: %v)\n", name, err)
				continue
			}
			fmt.Printf("  %-30s %d steps, %d inputs\n", name, len(w.Steps), len(w.InputSchema))
		}
		return nil
	},
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate [workflow.json]",
	Short: "Convert a legacy JSON workflow to YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Dir(args[0])
		store, err := storage.NewStore(dir)
		if err != nil {
			return err
		}
		name, err := store.MigrateJSON(filepath.Base(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("✓ Migrated to %s (original untouched)\n", filepath.Join(dir, name))
		return nil
	},
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the workflow JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(string(formatted))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webrun %s (build: %s)\n", version, commit)
	},
}

func init() {
	listCmd.Flags().StringVar(&listDir, "dir", "workflows", "Workflow directory")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// hasValidationErrors returns true if any error (non-warning) is present.
func hasValidationErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// countValidationErrors counts non-warning errors.
func countValidationErrors(errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

// printValidationWarnings prints any warnings to stderr.
func printValidationWarnings(errs []*schema.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
