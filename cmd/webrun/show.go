package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/webrun/pkg/diagram"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/template"
)

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show [workflow.yaml]",
	Short: "Pretty-print a workflow: inputs, steps, outputs, provenance",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	w, errs := schema.ValidateFile(args[0])
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		return fmt.Errorf("workflow validation failed: %s", errs[0].Error())
	}

	md := workflowMarkdown(w)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// No usable terminal; plain markdown still reads fine.
		fmt.Println(md)
		return nil
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Println(md)
		return nil
	}
	fmt.Print(out)
	return nil
}

// workflowMarkdown summarizes a workflow as Markdown for terminal rendering.
func workflowMarkdown(w *schema.Workflow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", w.Name)
	if w.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", w.Description)
	}
	if w.WorkflowAnalysis != "" {
		fmt.Fprintf(&b, "> %s\n\n", w.WorkflowAnalysis)
	}

	if len(w.InputSchema) > 0 {
		b.WriteString("## Inputs\n\n")
		b.WriteString("| Name | Type | Required | Format | Example |\n")
		b.WriteString("|------|------|----------|--------|--------|\n")
		for _, in := range w.InputSchema {
			req := ""
			if in.Required {
				req = "yes"
			}
			fmt.Fprintf(&b, "| `{%s}` | %s | %s | %s | %s |\n",
				in.Name, in.Type, req, in.Format, in.Example)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Steps\n\n")
	for i, s := range w.Steps {
		fmt.Fprintf(&b, "%d. **%s**", i+1, s.Type)
		if s.Description != "" {
			fmt.Fprintf(&b, " %s", s.Description)
		}
		switch {
		case s.URL != "":
			fmt.Fprintf(&b, " `%s`", s.URL)
		case s.TargetText != "":
			fmt.Fprintf(&b, " target `%s`", s.TargetText)
			if s.ContainerHint != "" {
				fmt.Fprintf(&b, " in `%s`", s.ContainerHint)
			}
		case s.ElementHash != "":
			fmt.Fprintf(&b, " fingerprint `%s`", s.ElementHash)
		case s.Task != "":
			fmt.Fprintf(&b, " task: %s (budget %d)", s.Task, s.MaxSteps)
		case s.Goal != "":
			fmt.Fprintf(&b, " goal: %s", s.Goal)
		}
		if names := template.Placeholders(s.Value + " " + s.TargetText + " " + s.Task); len(names) > 0 {
			fmt.Fprintf(&b, " _(uses {%s})_", strings.Join(names, "}, {"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(w.OutputSchema) > 0 {
		b.WriteString("## Outputs\n\n")
		for _, out := range w.OutputSchema {
			fmt.Fprintf(&b, "- `%s`: %s\n", out.Key, out.Goal)
		}
		b.WriteString("\n")
	}

	if w.Source != nil {
		b.WriteString("## Provenance\n\n")
		fmt.Fprintf(&b, "- Trace: `%s`\n", w.Source.TraceFile)
		fmt.Fprintf(&b, "- Compiled: %s\n", w.Source.CompiledAt)
		if w.Source.Model != "" {
			fmt.Fprintf(&b, "- Model: %s\n", w.Source.Model)
		}
		if w.Source.TraceHash != "" {
			fmt.Fprintf(&b, "- Hash: `%s`\n", w.Source.TraceHash)
		}
	}
	return b.String()
}

// --- diagram ---

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [workflow.yaml]",
	Short: "Render a workflow as a Mermaid or ASCII diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, errs := schema.ValidateFile(args[0])
		if hasValidationErrors(errs) {
			return fmt.Errorf("workflow validation failed: %s", errs[0].Error())
		}
		out, err := diagram.Generate(w, diagram.Format(diagramFormat))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "ascii", "Diagram format: ascii or mermaid")
}
