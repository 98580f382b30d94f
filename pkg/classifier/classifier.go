// Package classifier decides, for each value observed in a recorded trace,
// whether it is a reusable workflow input or a constant. Classification is
// deterministic and heuristic; an optional LLM pass can refine the
// suggestions but the heuristics remain authoritative.
package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ormasoftchile/webrun/pkg/schema"
	"github.com/ormasoftchile/webrun/pkg/trace"
)

// Variable is a value classified as a reusable workflow input.
type Variable struct {
	Name     string // unique, identifier-safe
	Type     string // string, number, boolean
	Format   string // descriptive shape hint (e.g. "user@domain.com"), optional
	Required bool
	Value    string // the observed concrete value
}

// Result is the immutable output of a classification pass: every observed
// value maps to exactly one of {variable, constant}. Values not present in
// byValue are constants.
type Result struct {
	Variables []Variable // ordered by first appearance
	byValue   map[string]int
}

// VariableFor returns the variable a concrete observed value collapsed
// into, if any.
func (r *Result) VariableFor(value string) (*Variable, bool) {
	i, ok := r.byValue[value]
	if !ok {
		return nil, false
	}
	return &r.Variables[i], true
}

// InputSchema converts the classified variables into workflow input
// declarations, preserving order.
func (r *Result) InputSchema() []schema.InputDef {
	defs := make([]schema.InputDef, 0, len(r.Variables))
	for _, v := range r.Variables {
		defs = append(defs, schema.InputDef{
			Name:     v.Name,
			Type:     v.Type,
			Format:   v.Format,
			Required: v.Required,
			Example:  v.Value,
		})
	}
	return defs
}

// Classify walks the full ordered trace and classifies every observed
// value. An empty trace yields an empty result with no error: a workflow
// may legitimately have zero inputs when every value is a constant.
func Classify(entries []trace.Entry) (*Result, error) {
	r := &Result{byValue: make(map[string]int)}
	taken := make(map[string]bool)

	for _, entry := range entries {
		for ai := range entry.Actions {
			action := &entry.Actions[ai]
			if trace.Skippable(action.Kind) {
				continue
			}
			el := trace.ElementForAction(&entry, action)

			switch action.Kind {
			case "input_text":
				// Free text the agent typed is user-specific by definition.
				if action.Text == "" {
					continue
				}
				r.addVariable(taken, fieldName(el, action.Text), action.Text)

			case "click", "click_element":
				// A click target is variable only when its text is content
				// the agent navigated to, not a fixed UI caption.
				if el == nil {
					continue
				}
				text := SemanticText(el)
				if text == "" {
					continue
				}
				if r.isNavigatedContent(el, text) {
					r.addVariable(taken, selectionName(el), text)
				}

			case "select_dropdown_option":
				// The chosen option varies by use case; the select control
				// itself is a fixed UI element.
				if action.SelectedText == "" {
					continue
				}
				r.addVariable(taken, fieldName(el, action.SelectedText), action.SelectedText)
			}
			// Navigation URLs, keypresses, and extraction goals are
			// constants: they do not vary with user intent.
		}
	}
	return r, nil
}

// isNavigatedContent reports whether clicked-element text is dynamic
// content rather than a fixed caption. Two signals: the recorder flagged
// the element as unstable, or the text repeats a value already classified
// as variable (clicking the search result that matches the typed query).
func (r *Result) isNavigatedContent(el *trace.InteractedElement, text string) bool {
	if el.Dynamic {
		return true
	}
	if _, ok := r.byValue[text]; ok {
		return true
	}
	switch strings.ToLower(el.TagName) {
	case "li", "tr", "td", "option":
		// Row-like containers hold result content, not chrome.
		return true
	}
	return false
}

// addVariable records value under name, collapsing repeats of the same
// value into the one existing variable and suffixing genuinely distinct
// roles that collide on a name.
func (r *Result) addVariable(taken map[string]bool, name, value string) {
	if _, ok := r.byValue[value]; ok {
		// Same semantic role observed again; collapse into the existing
		// variable.
		return
	}
	name = uniqueName(taken, name)
	taken[name] = true
	r.Variables = append(r.Variables, Variable{
		Name:     name,
		Type:     inferType(value),
		Format:   inferFormat(value),
		Required: true,
		Value:    value,
	})
	r.byValue[value] = len(r.Variables) - 1
}

// uniqueName disambiguates name collisions between distinct semantic roles
// with a numeric suffix.
func uniqueName(taken map[string]bool, name string) string {
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// SemanticText returns the element's best stable visible text, following
// the recorder's attribute priority: visible text, aria-label, title,
// placeholder, alt, value, name, id, then href-derived text.
func SemanticText(el *trace.InteractedElement) string {
	if el == nil {
		return ""
	}
	for _, s := range []string{
		el.VisibleText, el.AriaLabel, el.Title, el.Placeholder,
		el.Alt, el.Value, el.Name, el.ID,
	} {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return hrefText(el)
}

// hrefText derives readable text from an anchor's href last path segment,
// e.g. "/investors/sec-filings" becomes "Sec Filings".
func hrefText(el *trace.InteractedElement) string {
	if !strings.EqualFold(el.TagName, "a") || el.Href == "" {
		return ""
	}
	href := el.Href
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	seg := href
	if i := strings.LastIndex(href, "/"); i >= 0 {
		seg = href[i+1:]
	}
	if seg == "" || strings.Contains(seg, ".") {
		return ""
	}
	words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		w = strings.ToLower(w)
		if len(w) > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		words[i] = w
	}
	return strings.Join(words, " ")
}

// fieldName derives a variable name from the element the value was entered
// into, falling back to the value's own shape.
func fieldName(el *trace.InteractedElement, value string) string {
	if el != nil {
		for _, s := range []string{el.AriaLabel, el.Placeholder, el.VisibleText, el.Name, el.Title} {
			if n := toSnakeCase(s); n != "" {
				return n
			}
		}
	}
	if n := shapeName(value); n != "" {
		return n
	}
	return "value"
}

// selectionName derives a variable name for clicked result content from
// the enclosing container's heading, e.g. a list under "Results" yields
// "result_name".
func selectionName(el *trace.InteractedElement) string {
	if el != nil && el.ContainerHint != "" {
		base := toSnakeCase(el.ContainerHint)
		if base != "" {
			base = strings.TrimSuffix(base, "s")
			return base + "_name"
		}
	}
	return "selection"
}

// shapeName names a value by its recognizable shape.
func shapeName(value string) string {
	switch {
	case emailRe.MatchString(value):
		return "email"
	case usDateRe.MatchString(value) || isoDateRe.MatchString(value):
		return "date"
	case numberRe.MatchString(value):
		return "amount"
	}
	return ""
}

var (
	emailRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usDateRe  = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	numberRe  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	snakeRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// inferType maps a concrete value to a workflow input type.
func inferType(value string) string {
	if value == "true" || value == "false" {
		return schema.TypeBoolean
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return schema.TypeNumber
	}
	return schema.TypeString
}

// inferFormat attaches a descriptive shape hint for common value shapes.
func inferFormat(value string) string {
	switch {
	case emailRe.MatchString(value):
		return "user@domain.com"
	case usDateRe.MatchString(value):
		return "MM/DD/YYYY"
	case isoDateRe.MatchString(value):
		return "YYYY-MM-DD"
	}
	return ""
}

// toSnakeCase converts a label to a snake_case identifier.
func toSnakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = snakeRe.ReplaceAllString(s, " ")
	fields := strings.Fields(s)
	name := strings.Join(fields, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
