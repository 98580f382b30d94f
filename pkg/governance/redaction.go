// Package governance keeps secrets out of run artifacts. Workflows type
// credentials into login forms; the values must never land in manifests,
// traces, or terminal output.
package governance

import (
	"regexp"
	"strings"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// secretNameRe matches input names that carry credentials.
var secretNameRe = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|passcode|credential|pin)$`)

const mask = "[redacted]"

// SecretName reports whether an input name looks like it holds a secret.
func SecretName(name string) bool {
	return secretNameRe.MatchString(name)
}

// Redactor scrubs known secret values from strings and input maps. A nil
// Redactor is valid and redacts nothing.
type Redactor struct {
	names  map[string]bool
	values []string
}

// NewRedactor collects the secret-bearing subset of bound inputs. Values
// shorter than 4 characters are not scrubbed from free text: masking "1"
// everywhere would mangle more than it protects (the whole value is still
// masked wherever the input appears by name).
func NewRedactor(declared []schema.InputDef, bound map[string]string) *Redactor {
	r := &Redactor{names: make(map[string]bool)}
	for _, in := range declared {
		if !SecretName(in.Name) {
			continue
		}
		r.names[in.Name] = true
		if v := bound[in.Name]; len(v) >= 4 {
			r.values = append(r.values, v)
		}
	}
	if len(r.names) == 0 {
		return nil
	}
	return r
}

// Redact replaces every occurrence of a known secret value in s.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	for _, v := range r.values {
		s = strings.ReplaceAll(s, v, mask)
	}
	return s
}

// MaskInputs returns a copy of inputs with secret-named values masked.
// The original map is never mutated.
func (r *Redactor) MaskInputs(inputs map[string]string) map[string]string {
	if r == nil {
		return inputs
	}
	out := make(map[string]string, len(inputs))
	for k, v := range inputs {
		if r.names[k] {
			out[k] = mask
		} else {
			out[k] = r.Redact(v)
		}
	}
	return out
}
