// Package inputs binds caller-supplied values to a workflow's declared
// input schema before a run begins. Binding is fail-closed: a missing
// required value or a failed check constraint stops the run before the
// browser is touched.
package inputs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// BindError reports one input that could not be bound.
type BindError struct {
	Name   string
	Reason string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("input %q: %s", e.Name, e.Reason)
}

// Bindings is the resolved input set handed to the placeholder renderer.
// Values keeps the caller's string form verbatim; typed coercion is only
// used for validation and check evaluation, never to rewrite the value.
type Bindings struct {
	Values   map[string]string
	Warnings []string
}

// Options adjusts binding behavior.
type Options struct {
	// Prompter, when set, is asked for any required input the caller did
	// not supply instead of failing immediately.
	Prompter Prompter
}

// Bind validates provided against the workflow's input schema and returns
// the complete value set. Defaults fill optional inputs, format mismatches
// warn, type and check violations fail.
func Bind(w *schema.Workflow, provided map[string]string, opts Options) (*Bindings, error) {
	declared := make(map[string]bool, len(w.InputSchema))
	for _, in := range w.InputSchema {
		declared[in.Name] = true
	}

	b := &Bindings{Values: make(map[string]string, len(w.InputSchema))}
	for name := range provided {
		if !declared[name] {
			return nil, &BindError{Name: name, Reason: "not declared by the workflow"}
		}
	}

	for _, in := range w.InputSchema {
		value, ok := provided[in.Name]
		if !ok {
			switch {
			case in.Default != "":
				value = in.Default
			case !in.Required:
				continue
			case opts.Prompter != nil:
				prompted, err := opts.Prompter.Prompt(in)
				if err != nil {
					return nil, &BindError{Name: in.Name, Reason: fmt.Sprintf("prompt failed: %v", err)}
				}
				value = prompted
			default:
				return nil, &BindError{Name: in.Name, Reason: "required but not provided"}
			}
		}

		typed, err := coerce(in.Type, value)
		if err != nil {
			return nil, &BindError{Name: in.Name, Reason: err.Error()}
		}
		if in.Format != "" && !matchesFormat(in.Format, value) {
			b.Warnings = append(b.Warnings,
				fmt.Sprintf("input %q: value does not look like %s", in.Name, in.Format))
		}
		if in.Check != "" {
			if err := runCheck(in.Check, typed); err != nil {
				return nil, &BindError{Name: in.Name, Reason: err.Error()}
			}
		}
		b.Values[in.Name] = value
	}
	return b, nil
}

// coerce validates value against the declared type and returns the typed
// form for check evaluation.
func coerce(typ, value string) (any, error) {
	switch typ {
	case schema.TypeNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return n, nil
	case schema.TypeBoolean:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return v, nil
	default:
		return value, nil
	}
}

// runCheck evaluates an expr constraint with the typed value bound as
// `value`. The expression must yield a boolean.
func runCheck(check string, value any) error {
	env := map[string]any{"value": value}
	prog, err := expr.Compile(check, expr.Env(env), expr.AsBool())
	if err != nil {
		return fmt.Errorf("check %q does not compile: %v", check, err)
	}
	ok, err := expr.Run(prog, env)
	if err != nil {
		return fmt.Errorf("check %q: %v", check, err)
	}
	if ok != true {
		return fmt.Errorf("check %q rejected value", check)
	}
	return nil
}

// matchesFormat applies the loose format hints the classifier emits.
// Unknown formats always match; hints document expectations, they do not
// gate execution.
func matchesFormat(format, value string) bool {
	switch format {
	case "user@domain.com":
		at := strings.Index(value, "@")
		return at > 0 && strings.Contains(value[at+1:], ".")
	case "MM/DD/YYYY":
		parts := strings.Split(value, "/")
		return len(parts) == 3 && len(parts[0]) == 2 && len(parts[1]) == 2 && len(parts[2]) == 4
	case "YYYY-MM-DD":
		parts := strings.Split(value, "-")
		return len(parts) == 3 && len(parts[0]) == 4 && len(parts[1]) == 2 && len(parts[2]) == 2
	default:
		return true
	}
}
