package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webrun/pkg/classifier"
	"github.com/ormasoftchile/webrun/pkg/schema"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Input variable operations",
}

var varsProcessCmd = &cobra.Command{
	Use:   "process [workflow.yaml]",
	Short: "Extract VAR:name:value markers into declared inputs",
	Long: `Scan a workflow for manual VAR:name:value markers, replace each marked
field with a {name} placeholder, and declare the extracted names as
required inputs. The marker's value is kept as the input's example.

Markers let you parameterize a compiled workflow by editing it: change a
hardcoded value to VAR:city:Seattle and run this command.`,
	Args: cobra.ExactArgs(1),
	RunE: runVarsProcess,
}

func runVarsProcess(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	w, err := schema.LoadFile(filePath)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	extracted := classifier.ProcessMarkers(w)
	if len(extracted) == 0 {
		fmt.Println("No markers found; workflow unchanged.")
		return nil
	}

	if errs := schema.Validate(w); hasValidationErrors(errs) {
		for _, e := range errs {
			if e.Severity != "warning" {
				fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Phase, e.Message)
			}
		}
		return fmt.Errorf("workflow invalid after marker extraction")
	}

	data, err := schema.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}

	fmt.Printf("✓ Extracted %d input(s):\n", len(extracted))
	for _, in := range extracted {
		fmt.Printf("  {%s} %s (example: %s)\n", in.Name, in.Type, in.Example)
	}
	return nil
}

func init() {
	varsCmd.AddCommand(varsProcessCmd)
	rootCmd.AddCommand(varsCmd)
}
