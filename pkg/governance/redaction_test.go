package governance

import (
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

func TestSecretName(t *testing.T) {
	cases := map[string]bool{
		"password":       true,
		"admin_password": true,
		"api_key":        true,
		"apikey":         true,
		"session_token":  true,
		"pin":            true,
		"email":          false,
		"search":         false,
		"pint_count":     false, // pin must be a suffix, not a substring
	}
	for name, want := range cases {
		if got := SecretName(name); got != want {
			t.Errorf("SecretName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRedactorScrubsValues(t *testing.T) {
	r := NewRedactor(
		[]schema.InputDef{
			{Name: "email", Type: "string"},
			{Name: "password", Type: "string"},
		},
		map[string]string{"email": "a@b.io", "password": "hunter2!"},
	)
	if r == nil {
		t.Fatal("redactor must not be nil when a secret input is declared")
	}

	got := r.Redact(`resolve target: type "hunter2!" into Password`)
	if got != `resolve target: type "[redacted]" into Password` {
		t.Errorf("Redact = %q", got)
	}
	// Non-secret values pass through.
	if got := r.Redact("a@b.io logged in"); got != "a@b.io logged in" {
		t.Errorf("Redact = %q", got)
	}
}

func TestRedactorMaskInputs(t *testing.T) {
	inputs := map[string]string{"email": "a@b.io", "password": "hunter2!"}
	r := NewRedactor(
		[]schema.InputDef{
			{Name: "email", Type: "string"},
			{Name: "password", Type: "string"},
		},
		inputs,
	)

	masked := r.MaskInputs(inputs)
	if masked["password"] != "[redacted]" || masked["email"] != "a@b.io" {
		t.Errorf("masked = %v", masked)
	}
	if inputs["password"] != "hunter2!" {
		t.Error("original map must not be mutated")
	}
}

func TestRedactorShortValueNotScrubbedFromText(t *testing.T) {
	r := NewRedactor(
		[]schema.InputDef{{Name: "pin", Type: "string"}},
		map[string]string{"pin": "7"},
	)
	if got := r.Redact("step 7 passed"); got != "step 7 passed" {
		t.Errorf("Redact = %q", got)
	}
	// But the named input is still masked.
	masked := r.MaskInputs(map[string]string{"pin": "7"})
	if masked["pin"] != "[redacted]" {
		t.Errorf("masked = %v", masked)
	}
}

func TestNilRedactor(t *testing.T) {
	var r *Redactor
	if got := r.Redact("anything"); got != "anything" {
		t.Errorf("Redact = %q", got)
	}
	in := map[string]string{"a": "b"}
	if got := r.MaskInputs(in); got["a"] != "b" {
		t.Errorf("MaskInputs = %v", got)
	}

	// No secret inputs declared collapses to nil.
	if NewRedactor([]schema.InputDef{{Name: "email"}}, nil) != nil {
		t.Error("redactor without secrets must be nil")
	}
}
