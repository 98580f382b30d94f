// Package compiler turns a recorded browser-agent trace into a validated
// workflow document. Compilation is deterministic for a fixed trace and
// options; the optional LLM suggestion pass is the only nondeterministic
// stage and is off unless a client is supplied.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ormasoftchile/webrun/pkg/classifier"
	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/targeting"
	"github.com/ormasoftchile/webrun/pkg/template"
	"github.com/ormasoftchile/webrun/pkg/trace"
)

const (
	workflowVersion = "1.0.0"

	// defaultAgentBudget bounds synthesized agent steps so an escalated
	// step cannot wander indefinitely.
	defaultAgentBudget = 10
)

// Options configures one compilation.
type Options struct {
	Name      string // workflow name; derived from the trace when empty
	Goal      string // user's stated goal, becomes the description
	TraceFile string // provenance, recorded verbatim in source meta

	// LLM, when set, runs the variable suggestion pass after heuristic
	// classification. Its model name is recorded in source meta.
	LLM classifier.LLMClient

	// OptimizeNavigation collapses runs of consecutive navigations into
	// the final one. Off by default: intermediate pages may set cookies
	// or session state the later steps depend on.
	OptimizeNavigation bool
}

// CompileError reports a trace that cannot be compiled. ActionIndex is the
// ordinal of the offending recorded action across the whole trace, or -1
// when the problem is not tied to one action.
type CompileError struct {
	ActionIndex int
	Reason      string
}

func (e *CompileError) Error() string {
	if e.ActionIndex < 0 {
		return fmt.Sprintf("compile: %s", e.Reason)
	}
	return fmt.Sprintf("compile: action %d: %s", e.ActionIndex, e.Reason)
}

// Compile translates entries into a workflow. It either returns a workflow
// that passes full validation or an error; there is no partial artifact.
func Compile(ctx context.Context, entries []trace.Entry, opts Options) (*schema.Workflow, error) {
	if len(entries) == 0 {
		return nil, &CompileError{ActionIndex: -1, Reason: "trace contains no entries"}
	}

	vars, err := classifier.Classify(entries)
	if err != nil {
		return nil, fmt.Errorf("classify trace: %w", err)
	}

	w := &schema.Workflow{
		Version:     workflowVersion,
		Name:        opts.Name,
		Description: opts.Goal,
		InputSchema: vars.InputSchema(),
	}
	if w.Name == "" {
		w.Name = deriveName(entries)
	}

	emit := &emitter{workflow: w, vars: vars}
	ordinal := 0
	for ei := range entries {
		entry := &entries[ei]
		for ai := range entry.Actions {
			action := &entry.Actions[ai]
			if err := emit.action(entry, action, ordinal); err != nil {
				return nil, err
			}
			ordinal++
		}
	}
	if len(w.Steps) == 0 {
		return nil, &CompileError{ActionIndex: -1, Reason: "trace contains no translatable actions"}
	}

	if opts.OptimizeNavigation {
		w.Steps = collapseNavigations(w.Steps)
	}

	// Recorder-authored VAR markers override heuristic classification for
	// the fields they mark.
	classifier.ProcessMarkers(w)

	if opts.LLM != nil {
		suggestions, err := classifier.SuggestVariables(ctx, opts.LLM, w)
		if err != nil {
			return nil, fmt.Errorf("variable suggestion pass: %w", err)
		}
		classifier.ApplySuggestions(w, suggestions)
	}

	w.WorkflowAnalysis = analyze(w)
	w.Source = sourceMeta(entries, opts)

	if errs := schema.Validate(w); schema.HasErrors(errs) {
		return nil, fmt.Errorf("compiled workflow failed validation: %s", firstError(errs))
	}
	return w, nil
}

// emitter accumulates workflow steps while walking the trace.
type emitter struct {
	workflow *schema.Workflow
	vars     *classifier.Result

	// lastTargeted is the index of the most recent step carrying a
	// targeting strategy; keypresses without a recorded element inherit
	// its target (the focused field). An agent step in between invalidates
	// the inheritance: whatever the agent focused is unknown.
	lastTargeted int
	hasTargeted  bool
	lastWasAgent bool

	outputKeys map[string]bool
}

func (e *emitter) action(entry *trace.Entry, action *trace.RecordedAction, ordinal int) error {
	if trace.Skippable(action.Kind) {
		return nil
	}

	switch action.Kind {
	case "navigate", "go_to_url":
		url := action.URL
		if url == "" {
			url = entry.URL
		}
		if url == "" {
			return &CompileError{ActionIndex: ordinal, Reason: "navigation without a url"}
		}
		e.push(schema.Step{
			Type:        schema.StepNavigate,
			Description: "Open " + url,
			URL:         url,
		})
		return nil

	case "input_text":
		if action.Text == "" {
			return &CompileError{ActionIndex: ordinal, Reason: "input without text"}
		}
		value, err := e.literalOrPlaceholder(action.Text, ordinal)
		if err != nil {
			return err
		}
		el := trace.ElementForAction(entry, action)
		step := schema.Step{Type: schema.StepInput, Value: value}
		return e.pushTargeted(step, el, ordinal, fmt.Sprintf("Type %s", value))

	case "click", "click_element":
		el := trace.ElementForAction(entry, action)
		step := schema.Step{Type: schema.StepClick}
		return e.pushTargeted(step, el, ordinal, "Click")

	case "send_keys":
		if action.Keys == "" {
			return &CompileError{ActionIndex: ordinal, Reason: "send_keys without keys"}
		}
		step := schema.Step{Type: schema.StepKeypress, Key: action.Keys}
		el := trace.ElementForAction(entry, action)
		if el == nil {
			// Keys go to the focused element, which is whatever the
			// previous targeted step acted on.
			if !e.hasTargeted {
				return e.pushAgent(fmt.Sprintf("Press %s on the page", action.Keys),
					"keypress with no recorded element and no prior target")
			}
			if e.lastWasAgent {
				return e.pushAgent(fmt.Sprintf("Press %s on the element the previous task focused", action.Keys),
					"keypress after an agent-handled interaction; the focused element is unknown")
			}
			prev := e.workflow.Steps[e.lastTargeted]
			step.TargetText = prev.TargetText
			step.ContainerHint = prev.ContainerHint
			step.ElementHash = prev.ElementHash
			step.Description = fmt.Sprintf("Press %s", action.Keys)
			e.pushTargetedStep(step)
			return nil
		}
		return e.pushTargeted(step, el, ordinal, fmt.Sprintf("Press %s", action.Keys))

	case "select_dropdown_option":
		selected, err := e.literalOrPlaceholder(action.SelectedText, ordinal)
		if err != nil {
			return err
		}
		if selected == "" {
			return &CompileError{ActionIndex: ordinal, Reason: "dropdown selection without selected text"}
		}
		el := trace.ElementForAction(entry, action)
		step := schema.Step{Type: schema.StepSelectChange, SelectedText: selected}
		return e.pushTargeted(step, el, ordinal, fmt.Sprintf("Select %s", selected))

	case "extract_content":
		if action.Goal == "" {
			return &CompileError{ActionIndex: ordinal, Reason: "extraction without a goal"}
		}
		key := e.uniqueOutputKey(outputKey(action.Goal))
		e.push(schema.Step{
			Type:        schema.StepExtract,
			Description: "Extract " + action.Goal,
			Goal:        action.Goal,
			OutputKey:   key,
		})
		e.workflow.OutputSchema = append(e.workflow.OutputSchema, schema.OutputField{
			Key:  key,
			Goal: action.Goal,
		})
		return nil

	default:
		return &CompileError{ActionIndex: ordinal, Reason: fmt.Sprintf("unknown action kind %q", action.Kind)}
	}
}

// pushTargeted resolves the element's targeting decision and appends
// either the concrete step or a synthesized agent step.
func (e *emitter) pushTargeted(step schema.Step, el *trace.InteractedElement, ordinal int, verb string) error {
	text := classifier.SemanticText(el)

	// A click on navigated content targets the parameterized text, so
	// each run clicks the row matching its own input.
	if v, ok := e.vars.VariableFor(text); ok {
		text = "{" + v.Name + "}"
	} else if text != "" {
		if err := template.CheckLiteral(text); err != nil {
			return &CompileError{ActionIndex: ordinal, Reason: fmt.Sprintf("recorded element text: %v", err)}
		}
	}

	dec := targeting.Choose(el, text)
	switch dec.Kind {
	case targeting.DecideSemantic:
		step.TargetText = dec.Text
		// A recorded hint with braces would read as placeholder syntax.
		// The hint is optional disambiguation, so it is dropped, not fatal.
		if template.CheckLiteral(dec.ContainerHint) == nil {
			step.ContainerHint = dec.ContainerHint
		}
		step.Description = verb + " " + dec.Text
	case targeting.DecideFingerprint:
		step.ElementHash = dec.Fingerprint
		step.Description = verb + " the recorded element"
	case targeting.DecideAgentic:
		return e.pushAgent(agentTask(step.Type, verb, el), dec.Reason)
	}
	e.pushTargetedStep(step)
	return nil
}

func (e *emitter) push(step schema.Step) {
	e.workflow.Steps = append(e.workflow.Steps, step)
}

func (e *emitter) pushTargetedStep(step schema.Step) {
	e.push(step)
	e.lastTargeted = len(e.workflow.Steps) - 1
	e.hasTargeted = true
	e.lastWasAgent = false
}

func (e *emitter) pushAgent(task, reason string) error {
	e.push(schema.Step{
		Type:        schema.StepAgent,
		Description: "Delegated: " + reason,
		Task:        task,
		MaxSteps:    defaultAgentBudget,
	})
	e.lastWasAgent = true
	return nil
}

// literalOrPlaceholder swaps a recorded value for its variable placeholder,
// or passes the literal through after checking it is brace-free.
func (e *emitter) literalOrPlaceholder(value string, ordinal int) (string, error) {
	if v, ok := e.vars.VariableFor(value); ok {
		return "{" + v.Name + "}", nil
	}
	if err := template.CheckLiteral(value); err != nil {
		return "", &CompileError{ActionIndex: ordinal, Reason: fmt.Sprintf("recorded value: %v", err)}
	}
	return value, nil
}

func (e *emitter) uniqueOutputKey(key string) string {
	if e.outputKeys == nil {
		e.outputKeys = make(map[string]bool)
	}
	candidate := key
	for n := 2; e.outputKeys[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d", key, n)
	}
	e.outputKeys[candidate] = true
	return candidate
}

// agentTask synthesizes a self-contained instruction for a step the
// compiler could not target deterministically.
func agentTask(kind, verb string, el *trace.InteractedElement) string {
	var b strings.Builder
	b.WriteString(verb)
	if el != nil {
		if el.TagName != "" {
			fmt.Fprintf(&b, " the %s element", el.TagName)
		}
		if el.ContainerHint != "" {
			fmt.Fprintf(&b, " in the %q section", el.ContainerHint)
		}
	} else {
		b.WriteString(" the element this step refers to")
	}
	fmt.Fprintf(&b, " (recorded as a %s action)", kind)
	return b.String()
}

// collapseNavigations keeps only the last navigation of every consecutive
// run. Conservative on purpose: non-adjacent navigations always survive.
func collapseNavigations(steps []schema.Step) []schema.Step {
	out := steps[:0]
	for i, s := range steps {
		if s.Type == schema.StepNavigate && i+1 < len(steps) && steps[i+1].Type == schema.StepNavigate {
			continue
		}
		out = append(out, s)
	}
	return out
}

// outputKey derives a snake_case output key from an extraction goal,
// dropping filler words so "Extract the current stock price" becomes
// "current_stock_price".
func outputKey(goal string) string {
	filler := map[string]bool{
		"extract": true, "get": true, "find": true, "read": true,
		"the": true, "a": true, "an": true, "of": true, "from": true,
		"this": true, "that": true, "page": true,
	}
	var words []string
	for _, w := range strings.Fields(strings.ToLower(goal)) {
		w = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, w)
		if w == "" || filler[w] {
			continue
		}
		words = append(words, w)
		if len(words) == 5 {
			break
		}
	}
	if len(words) == 0 {
		return "extracted_content"
	}
	return strings.Join(words, "_")
}

func deriveName(entries []trace.Entry) string {
	for _, e := range entries {
		if e.Title != "" {
			return e.Title
		}
		if e.URL != "" {
			return e.URL
		}
	}
	return "recorded workflow"
}

// analyze summarizes what the compiler decided, for human readers of the
// workflow file.
func analyze(w *schema.Workflow) string {
	var agents, extracts int
	for _, s := range w.Steps {
		switch s.Type {
		case schema.StepAgent:
			agents++
		case schema.StepExtract:
			extracts++
		}
	}
	return fmt.Sprintf("%d steps, %d inputs, %d extractions, %d delegated to the agent",
		len(w.Steps), len(w.InputSchema), extracts, agents)
}

func sourceMeta(entries []trace.Entry, opts Options) *schema.SourceMeta {
	meta := &schema.SourceMeta{
		TraceFile:  opts.TraceFile,
		CompiledAt: time.Now().UTC().Format(time.RFC3339),
		TraceHash:  traceHash(entries),
	}
	if opts.LLM != nil {
		meta.Model = opts.LLM.ModelName()
	}
	return meta
}

// traceHash fingerprints the parsed trace so a workflow can be traced back
// to the exact recording it was compiled from.
func traceHash(entries []trace.Entry) string {
	data, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

func firstError(errs []*schema.ValidationError) string {
	for _, e := range errs {
		if e.Severity != "warning" {
			return e.Error()
		}
	}
	return ""
}
