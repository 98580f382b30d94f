package main

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

func TestWorkflowMarkdown(t *testing.T) {
	w := &schema.Workflow{
		Version:     "1.0.0",
		Name:        "order-lookup",
		Description: "Look up an order by number",
		InputSchema: []schema.InputDef{
			{Name: "order_number", Type: "string", Required: true, Example: "A-1042"},
		},
		Steps: []schema.Step{
			{Type: schema.StepNavigate, URL: "https://shop.example.com/orders"},
			{Type: schema.StepInput, TargetText: "Order number", Value: "{order_number}"},
			{Type: schema.StepExtract, Goal: "Extract the order status", OutputKey: "status"},
		},
		OutputSchema: []schema.OutputField{{Key: "status", Goal: "Extract the order status"}},
		Source:       &schema.SourceMeta{TraceFile: "trace.json", CompiledAt: "2026-08-01T10:00:00Z"},
	}

	md := workflowMarkdown(w)
	for _, want := range []string{
		"# order-lookup",
		"`{order_number}`",
		"target `Order number`",
		"_(uses {order_number})_",
		"- `status`: Extract the order status",
		"## Provenance",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("got %q", got)
	}
}
