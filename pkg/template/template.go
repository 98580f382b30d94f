// Package template implements single-pass placeholder substitution for
// workflow step fields. Placeholders use exactly one pair of enclosing
// braces around an identifier, e.g. {user_email}. Double or quadruple
// delimiter sequences are always a defect, never a valid encoding.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderRe matches a single-brace-pair placeholder: {identifier}.
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// UnboundPlaceholderError reports a placeholder whose name is absent from
// the bindings (at render time) or from the input schema (at validate time).
type UnboundPlaceholderError struct {
	Name  string // placeholder name
	Field string // field the placeholder appeared in, if known
}

func (e *UnboundPlaceholderError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("unbound placeholder {%s} in %s", e.Name, e.Field)
	}
	return fmt.Sprintf("unbound placeholder {%s}", e.Name)
}

// MalformedError reports a string whose brace delimiters do not form a
// well-formed single-level placeholder expression.
type MalformedError struct {
	Input  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed placeholder syntax in %q: %s", e.Input, e.Reason)
}

// Placeholders returns the distinct placeholder names referenced by s, in
// order of first appearance.
func Placeholders(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Check verifies that every brace in s belongs to a well-formed {name}
// placeholder. Doubled delimiters ({{ or }}) and stray/unbalanced braces
// are rejected: the escaping policy is to fail at compile time rather
// than silently double-substitute.
func Check(s string) error {
	if strings.Contains(s, "{{") || strings.Contains(s, "}}") {
		return &MalformedError{Input: s, Reason: "doubled delimiter sequence"}
	}
	// Strip well-formed placeholders; whatever braces remain are strays.
	rest := placeholderRe.ReplaceAllString(s, "")
	if i := strings.IndexAny(rest, "{}"); i >= 0 {
		return &MalformedError{Input: s, Reason: fmt.Sprintf("stray %q delimiter", rest[i])}
	}
	return nil
}

// CheckLiteral verifies that a literal value (one that will be stored in a
// compiled workflow without being a template) contains no placeholder
// delimiters at all.
func CheckLiteral(s string) error {
	if strings.ContainsAny(s, "{}") {
		return &MalformedError{Input: s, Reason: "literal value contains placeholder delimiters"}
	}
	return nil
}

// Render substitutes every placeholder in tmpl with its binding in a single
// left-to-right pass. Substituted values are inserted verbatim and never
// rescanned, so a value containing brace characters cannot trigger a second
// substitution. Rendering is total: if any referenced name is missing from
// bindings, Render fails with UnboundPlaceholderError before substituting
// anything. The bindings map is never mutated.
func Render(tmpl string, bindings map[string]string) (string, error) {
	if err := Check(tmpl); err != nil {
		return "", err
	}

	// Fail before any substitution so output is never partial.
	for _, name := range Placeholders(tmpl) {
		if _, ok := bindings[name]; !ok {
			return "", &UnboundPlaceholderError{Name: name}
		}
	}

	var b strings.Builder
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:loc[0]])
		name := tmpl[loc[2]:loc[3]]
		b.WriteString(bindings[name])
		last = loc[1]
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}

// SortedNames returns binding names sorted for stable reporting.
func SortedNames(bindings map[string]string) []string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
