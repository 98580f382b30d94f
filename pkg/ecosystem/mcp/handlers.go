package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/webrun/pkg/compiler"
	"github.com/ormasoftchile/webrun/pkg/diagram"
	"github.com/ormasoftchile/webrun/pkg/inputs"
	"github.com/ormasoftchile/webrun/pkg/replay"
	"github.com/ormasoftchile/webrun/pkg/runtime"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/storage"
	"github.com/ormasoftchile/webrun/pkg/trace"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf(format, args...))},
		IsError: true,
	}
}

func stringArg(req mcp.CallToolRequest, name string) (string, bool) {
	v, ok := req.GetArguments()[name].(string)
	return v, ok && v != ""
}

// HandleList lists the workflows in a directory.
func HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, ok := stringArg(req, "dir")
	if !ok {
		return errorResult("missing required parameter: dir"), nil
	}
	store, err := storage.NewStore(dir)
	if err != nil {
		return errorResult("open store: %v", err), nil
	}
	names, err := store.List()
	if err != nil {
		return errorResult("list workflows: %v", err), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"dir":       dir,
		"workflows": names,
	}, "", "  ")
	return textResult(string(out)), nil
}

// HandleValidate validates one workflow file and reports findings.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := stringArg(req, "path")
	if !ok {
		return errorResult("missing required parameter: path"), nil
	}

	w, errs := schema.ValidateFile(path)
	type finding struct {
		Phase    string `json:"phase"`
		Path     string `json:"path,omitempty"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}
	resp := struct {
		Valid    bool      `json:"valid"`
		Name     string    `json:"name,omitempty"`
		Steps    int       `json:"steps,omitempty"`
		Findings []finding `json:"findings,omitempty"`
	}{Valid: !schema.HasErrors(errs)}
	if w != nil {
		resp.Name = w.Name
		resp.Steps = len(w.Steps)
	}
	for _, e := range errs {
		resp.Findings = append(resp.Findings, finding{
			Phase:    e.Phase,
			Path:     e.Path,
			Message:  e.Message,
			Severity: e.Severity,
		})
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	return textResult(string(out)), nil
}

// HandleSchema returns the workflow JSON Schema document.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult("generate schema: %v", err), nil
	}
	return textResult(string(data)), nil
}

// HandleCompile compiles a recorded trace into a workflow file.
func HandleCompile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracePath, ok := stringArg(req, "trace")
	if !ok {
		return errorResult("missing required parameter: trace"), nil
	}
	outPath, ok := stringArg(req, "out")
	if !ok {
		return errorResult("missing required parameter: out"), nil
	}
	name, _ := stringArg(req, "name")
	goal, _ := stringArg(req, "goal")

	entries, err := trace.LoadFile(tracePath)
	if err != nil {
		return errorResult("load trace: %v", err), nil
	}
	w, err := compiler.Compile(ctx, entries, compiler.Options{
		Name:      name,
		Goal:      goal,
		TraceFile: tracePath,
	})
	if err != nil {
		return errorResult("compile: %v", err), nil
	}

	data, err := schema.Marshal(w)
	if err != nil {
		return errorResult("marshal workflow: %v", err), nil
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return errorResult("write workflow: %v", err), nil
	}

	var inputNames []string
	for _, in := range w.InputSchema {
		inputNames = append(inputNames, in.Name)
	}
	out, _ := json.MarshalIndent(map[string]any{
		"workflow": outPath,
		"name":     w.Name,
		"steps":    len(w.Steps),
		"inputs":   inputNames,
	}, "", "  ")
	return textResult(string(out)), nil
}

// HandleRun replays a workflow against a recorded scenario. Runs are
// offline and deterministic; real browser runs stay on the CLI where
// credentials and a display are available.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := stringArg(req, "path")
	if !ok {
		return errorResult("missing required parameter: path"), nil
	}
	scenarioPath, ok := stringArg(req, "scenario")
	if !ok {
		return errorResult("missing required parameter: scenario"), nil
	}

	provided := map[string]string{}
	if raw, ok := req.GetArguments()["inputs"].(map[string]any); ok {
		for k, v := range raw {
			provided[k] = fmt.Sprint(v)
		}
	}

	w, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult("workflow invalid: %s", errs[0].Error()), nil
	}
	scenario, err := replay.LoadScenario(scenarioPath)
	if err != nil {
		return errorResult("load scenario: %v", err), nil
	}

	bound, err := inputs.Bind(w, provided, inputs.Options{})
	if err != nil {
		return errorResult("bind inputs: %v", err), nil
	}

	drv := replay.NewScenarioDriver(scenario)
	eng, err := runtime.NewEngine(w, path, drv, nil, bound.Values, runtime.ModeReplay)
	if err != nil {
		return errorResult("start run: %v", err), nil
	}

	result, runErr := eng.Run(ctx)
	resp := map[string]any{
		"run_id":  result.RunID,
		"outcome": "succeeded",
		"output":  result.Output,
		"summary": result.Summary,
		"actions": len(drv.Performed),
	}
	if runErr != nil {
		resp["outcome"] = "failed"
		resp["error"] = runErr.Error()
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	return textResult(string(out)), nil
}

// HandleDiagram renders a workflow as a Mermaid flowchart.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := stringArg(req, "path")
	if !ok {
		return errorResult("missing required parameter: path"), nil
	}
	w, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult("workflow invalid: %s", errs[0].Error()), nil
	}
	out, err := diagram.Generate(w, diagram.FormatMermaid)
	if err != nil {
		return errorResult("render diagram: %v", err), nil
	}
	return textResult(out), nil
}
