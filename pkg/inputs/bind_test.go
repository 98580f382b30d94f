package inputs

import (
	"errors"
	"testing"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

func workflowWithInputs(defs ...schema.InputDef) *schema.Workflow {
	return &schema.Workflow{Version: "1.0.0", Name: "t", InputSchema: defs}
}

type fixedPrompter struct {
	value string
	asked []string
}

func (p *fixedPrompter) Prompt(in schema.InputDef) (string, error) {
	p.asked = append(p.asked, in.Name)
	return p.value, nil
}

func TestBindHappyPath(t *testing.T) {
	w := workflowWithInputs(
		schema.InputDef{Name: "email", Type: schema.TypeString, Format: "user@domain.com", Required: true},
		schema.InputDef{Name: "pages", Type: schema.TypeNumber, Default: "1"},
	)
	b, err := Bind(w, map[string]string{"email": "alice@example.com"}, Options{})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if b.Values["email"] != "alice@example.com" {
		t.Errorf("email = %q", b.Values["email"])
	}
	if b.Values["pages"] != "1" {
		t.Errorf("default not applied: %q", b.Values["pages"])
	}
	if len(b.Warnings) != 0 {
		t.Errorf("warnings = %v", b.Warnings)
	}
}

func TestBindMissingRequired(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{Name: "email", Type: schema.TypeString, Required: true})
	_, err := Bind(w, nil, Options{})
	var berr *BindError
	if !errors.As(err, &berr) || berr.Name != "email" {
		t.Fatalf("err = %v, want BindError for email", err)
	}
}

func TestBindPromptsForMissingRequired(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{Name: "city", Type: schema.TypeString, Required: true})
	p := &fixedPrompter{value: "Santiago"}
	b, err := Bind(w, nil, Options{Prompter: p})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if b.Values["city"] != "Santiago" {
		t.Errorf("city = %q", b.Values["city"])
	}
	if len(p.asked) != 1 || p.asked[0] != "city" {
		t.Errorf("asked = %v", p.asked)
	}
}

func TestBindUndeclaredValueRejected(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{Name: "email", Type: schema.TypeString})
	if _, err := Bind(w, map[string]string{"emial": "x"}, Options{}); err == nil {
		t.Fatal("misspelled input name must be rejected")
	}
}

func TestBindTypeViolations(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{Name: "pages", Type: schema.TypeNumber, Required: true})
	if _, err := Bind(w, map[string]string{"pages": "many"}, Options{}); err == nil {
		t.Fatal("non-numeric value for number input must fail")
	}

	w = workflowWithInputs(schema.InputDef{Name: "headless", Type: schema.TypeBoolean, Required: true})
	if _, err := Bind(w, map[string]string{"headless": "yep"}, Options{}); err == nil {
		t.Fatal("non-boolean value for boolean input must fail")
	}
}

func TestBindFormatMismatchWarnsOnly(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{
		Name: "email", Type: schema.TypeString, Format: "user@domain.com", Required: true,
	})
	b, err := Bind(w, map[string]string{"email": "not-an-email"}, Options{})
	if err != nil {
		t.Fatalf("format mismatch must not fail binding: %v", err)
	}
	if len(b.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", b.Warnings)
	}
	if b.Values["email"] != "not-an-email" {
		t.Errorf("value rewritten: %q", b.Values["email"])
	}
}

func TestBindCheckConstraint(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{
		Name: "pages", Type: schema.TypeNumber, Required: true, Check: "value >= 1 && value <= 50",
	})
	if _, err := Bind(w, map[string]string{"pages": "10"}, Options{}); err != nil {
		t.Fatalf("in-range value rejected: %v", err)
	}
	if _, err := Bind(w, map[string]string{"pages": "99"}, Options{}); err == nil {
		t.Fatal("out-of-range value must fail the check")
	}
}

func TestBindStringCheckConstraint(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{
		Name: "ticker", Type: schema.TypeString, Required: true, Check: `len(value) <= 5`,
	})
	if _, err := Bind(w, map[string]string{"ticker": "EIX"}, Options{}); err != nil {
		t.Fatalf("short ticker rejected: %v", err)
	}
	if _, err := Bind(w, map[string]string{"ticker": "TOOLONGNAME"}, Options{}); err == nil {
		t.Fatal("long ticker must fail the check")
	}
}

func TestBindOptionalSkippedWhenAbsent(t *testing.T) {
	w := workflowWithInputs(schema.InputDef{Name: "note", Type: schema.TypeString})
	b, err := Bind(w, nil, Options{})
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if _, ok := b.Values["note"]; ok {
		t.Error("absent optional input must stay unbound")
	}
}

func TestMatchesFormat(t *testing.T) {
	cases := []struct {
		format, value string
		want          bool
	}{
		{"user@domain.com", "a@b.io", true},
		{"user@domain.com", "nope", false},
		{"MM/DD/YYYY", "01/02/2025", true},
		{"MM/DD/YYYY", "1/2/25", false},
		{"YYYY-MM-DD", "2025-01-02", true},
		{"something-else", "anything", true},
	}
	for _, c := range cases {
		if got := matchesFormat(c.format, c.value); got != c.want {
			t.Errorf("matchesFormat(%q, %q) = %v, want %v", c.format, c.value, got, c.want)
		}
	}
}
