// Package diagram renders a compiled workflow as a visual step diagram.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a workflow.
func Generate(w *schema.Workflow, format Format) (string, error) {
	if w == nil {
		return "", fmt.Errorf("nil workflow")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(w), nil
	case FormatASCII:
		return generateASCII(w), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(w *schema.Workflow) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(w.Steps) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> S0\n")
	for i, s := range w.Steps {
		id := fmt.Sprintf("S%d", i)
		b.WriteString(fmt.Sprintf("    %s[%q]\n", id, stepLabel(&s)))
		if i < len(w.Steps)-1 {
			b.WriteString(fmt.Sprintf("    %s --> S%d\n", id, i+1))
		}

		switch s.Type {
		case schema.StepAgent:
			b.WriteString(fmt.Sprintf("    style %s fill:#e60,stroke:#c40,color:#fff\n", id))
		case schema.StepExtract:
			b.WriteString(fmt.Sprintf("    style %s fill:#07a,stroke:#058,color:#fff\n", id))
		}
	}
	b.WriteString(fmt.Sprintf("    S%d --> DONE([Done])\n", len(w.Steps)-1))

	for _, out := range w.OutputSchema {
		outID := "OUT_" + out.Key
		b.WriteString(fmt.Sprintf("    DONE --> %s[/%q/]\n", outID, out.Key))
	}
	return b.String()
}

func stepLabel(s *schema.Step) string {
	label := s.Description
	if label == "" {
		switch s.Type {
		case schema.StepNavigate:
			label = "Open " + s.URL
		case schema.StepExtract:
			label = "Extract " + s.Goal
		case schema.StepAgent:
			label = "Agent: " + s.Task
		default:
			label = s.Type + " " + s.TargetText
		}
	}
	return truncate(label, 50)
}

// --- ASCII ---

func generateASCII(w *schema.Workflow) string {
	var b strings.Builder

	name := w.Name
	if name == "" {
		name = "Workflow"
	}
	if len(w.Steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// One uniform box width keeps boxes and connectors aligned.
	lines := make([]string, len(w.Steps))
	width := runewidth.StringWidth(name) + 2
	for i := range w.Steps {
		lines[i] = " " + stepIcon(w.Steps[i].Type) + " " + stepLabel(&w.Steps[i]) + " "
		if lw := runewidth.StringWidth(lines[i]); lw > width {
			width = lw
		}
	}

	const indent = 4
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", indent+1+width/2)

	b.WriteString(pad + "╔" + strings.Repeat("═", width) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, width) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", width) + "╝\n")

	for _, line := range lines {
		b.WriteString(connPad + "│\n")
		lw := runewidth.StringWidth(line)
		b.WriteString(pad + "┌" + strings.Repeat("─", width) + "┐\n")
		b.WriteString(pad + "│" + line + strings.Repeat(" ", width-lw) + "│\n")
		b.WriteString(pad + "└" + strings.Repeat("─", width) + "┘\n")
	}
	return b.String()
}

func stepIcon(kind string) string {
	switch kind {
	case schema.StepNavigate:
		return "→"
	case schema.StepInput:
		return "⌨"
	case schema.StepClick:
		return "⊙"
	case schema.StepKeypress:
		return "⏎"
	case schema.StepSelectChange:
		return "▾"
	case schema.StepExtract:
		return "✂"
	case schema.StepAgent:
		return "✳"
	}
	return "•"
}

func centerPad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
