package schema

import (
	"encoding/json"
	"fmt"
	"regexp"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/webrun/pkg/template"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[3].value")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether the list contains anything stronger than a
// warning.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// identRe matches identifier-safe input names (same shape as placeholder
// names).
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateFile performs the full 3-phase validation pipeline on a workflow
// file.
// Phase 1: Structural (strict decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules: targeting exclusivity, placeholder
// closure, input uniqueness)
func ValidateFile(path string) (*Workflow, []*ValidationError) {
	w, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return w, Validate(w)
}

// Validate runs the semantic and domain phases on an in-memory workflow.
func Validate(w *Workflow) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(w)...)
	all = append(all, validateDomain(w)...)
	return all
}

// validateSemantic validates the workflow against the generated JSON Schema.
func validateSemantic(w *Workflow) []*ValidationError {
	fail := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(w)
	if err != nil {
		return fail(fmt.Sprintf("marshal for schema validation: %v", err))
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail(fmt.Sprintf("generate schema: %v", err))
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail(fmt.Sprintf("unmarshal schema: %v", err))
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("workflow-v1.json", schemaDoc); err != nil {
		return fail(fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile("workflow-v1.json")
	if err != nil {
		return fail(fmt.Sprintf("compile schema: %v", err))
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(fmt.Sprintf("unmarshal document: %v", err))
	}

	if err := sch.Validate(doc); err != nil {
		return fail(fmt.Sprintf("schema validation: %v", err))
	}
	return nil
}

// validateDomain applies the workflow invariants that JSON Schema cannot
// express.
func validateDomain(w *Workflow) []*ValidationError {
	var errs []*ValidationError
	add := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}
	warn := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "warning"})
	}

	// Input schema: identifier-safe, unique names, valid types.
	declared := make(map[string]bool)
	for i, in := range w.InputSchema {
		path := fmt.Sprintf("input_schema[%d]", i)
		if !identRe.MatchString(in.Name) {
			add(path, fmt.Sprintf("input name %q is not identifier-safe", in.Name))
		}
		if declared[in.Name] {
			add(path, fmt.Sprintf("duplicate input name %q", in.Name))
		}
		declared[in.Name] = true
		switch in.Type {
		case TypeString, TypeNumber, TypeBoolean:
		default:
			add(path, fmt.Sprintf("input %q has invalid type %q", in.Name, in.Type))
		}
	}

	referenced := make(map[string]bool)

	// Steps: kind membership, per-kind required fields, targeting
	// exclusivity, placeholder closure.
	for i, s := range w.Steps {
		path := fmt.Sprintf("steps[%d]", i)

		switch s.Type {
		case StepNavigate:
			if s.URL == "" {
				add(path, "navigate step requires url")
			}
		case StepInput:
			if s.Value == "" {
				add(path, "input step requires value")
			}
		case StepClick:
			// targeting is the only requirement, checked below
		case StepKeypress:
			if s.Key == "" {
				add(path, "keypress step requires key")
			}
		case StepSelectChange:
			if s.SelectedText == "" {
				add(path, "select_change step requires selected_text")
			}
		case StepExtract:
			if s.Goal == "" {
				add(path, "extract_page_content step requires goal")
			}
		case StepAgent:
			if s.Task == "" {
				add(path, "agent step requires task")
			}
			if s.MaxSteps <= 0 {
				add(path, "agent step requires a positive max_steps budget")
			}
		default:
			add(path, fmt.Sprintf("unknown step type %q", s.Type))
			continue
		}

		if TargetingCapable(s.Type) {
			switch {
			case s.HasSemanticTarget() && s.HasFingerprint():
				add(path, "step has both a semantic target and an element fingerprint; exactly one is allowed")
			case !s.HasSemanticTarget() && !s.HasFingerprint():
				add(path, fmt.Sprintf("%s step has no targeting strategy", s.Type))
			}
			if s.HasFingerprint() {
				// Fingerprints are opaque: never parameterized, never guessed.
				if err := template.CheckLiteral(s.ElementHash); err != nil {
					add(path+".element_hash", err.Error())
				}
			}
		} else if s.TargetText != "" || s.ElementHash != "" || s.ContainerHint != "" {
			add(path, fmt.Sprintf("%s step must not carry targeting fields", s.Type))
		}

		// Placeholder closure over every string field that admits
		// placeholders.
		for field, value := range map[string]string{
			"url":            s.URL,
			"target_text":    s.TargetText,
			"container_hint": s.ContainerHint,
			"value":          s.Value,
			"selected_text":  s.SelectedText,
			"goal":           s.Goal,
			"task":           s.Task,
		} {
			if value == "" {
				continue
			}
			fieldPath := path + "." + field
			if err := template.Check(value); err != nil {
				add(fieldPath, err.Error())
				continue
			}
			for _, name := range template.Placeholders(value) {
				referenced[name] = true
				if !declared[name] {
					add(fieldPath, (&template.UnboundPlaceholderError{Name: name, Field: fieldPath}).Error())
				}
			}
		}
	}

	// Unused required inputs are suspicious but not fatal.
	for _, in := range w.InputSchema {
		if in.Required && !referenced[in.Name] {
			warn("input_schema", fmt.Sprintf("required input %q is never referenced by any step", in.Name))
		}
	}

	// Output schema keys must be unique and match extract steps.
	outKeys := make(map[string]bool)
	for i, out := range w.OutputSchema {
		path := fmt.Sprintf("output_schema[%d]", i)
		if outKeys[out.Key] {
			add(path, fmt.Sprintf("duplicate output key %q", out.Key))
		}
		outKeys[out.Key] = true
	}
	for i, s := range w.Steps {
		if s.Type == StepExtract && s.OutputKey != "" && !outKeys[s.OutputKey] {
			add(fmt.Sprintf("steps[%d].output_key", i), fmt.Sprintf("output key %q is not declared in output_schema", s.OutputKey))
		}
	}

	return errs
}
