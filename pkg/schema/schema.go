// Package schema defines the Go struct types for the compiled workflow
// document and provides strict YAML/JSON parsing.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step kinds. The set is closed: a workflow step is exactly one of these.
const (
	StepNavigate     = "navigate"
	StepInput        = "input"
	StepClick        = "click"
	StepKeypress     = "keypress"
	StepSelectChange = "select_change"
	StepExtract      = "extract_page_content"
	StepAgent        = "agent"
)

// Input types allowed in the input schema.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Workflow is the top-level compiled workflow document: an ordered step
// sequence plus declared input and output schemas. Step order is execution
// order; nothing reorders steps after compilation.
type Workflow struct {
	Version          string        `yaml:"version"                     json:"version"                     jsonschema:"required"`
	Name             string        `yaml:"name"                        json:"name"                        jsonschema:"required"`
	Description      string        `yaml:"description,omitempty"       json:"description,omitempty"`
	WorkflowAnalysis string        `yaml:"workflow_analysis,omitempty" json:"workflow_analysis,omitempty"`
	Source           *SourceMeta   `yaml:"source,omitempty"            json:"source,omitempty"`
	InputSchema      []InputDef    `yaml:"input_schema"                json:"input_schema"`
	OutputSchema     []OutputField `yaml:"output_schema,omitempty"     json:"output_schema,omitempty"`
	Steps            []Step        `yaml:"steps"                       json:"steps"                       jsonschema:"required"`
}

// SourceMeta tracks provenance: where this workflow was compiled from.
type SourceMeta struct {
	TraceFile  string `yaml:"trace_file"           json:"trace_file"           jsonschema:"required"`
	CompiledAt string `yaml:"compiled_at"          json:"compiled_at"          jsonschema:"required"`
	Model      string `yaml:"model,omitempty"      json:"model,omitempty"`
	TraceHash  string `yaml:"trace_hash,omitempty" json:"trace_hash,omitempty"`
}

// InputDef declares one named, typed workflow input. Names are unique
// within a workflow; every {name} placeholder in any step field must
// reference a declared input.
type InputDef struct {
	Name     string `yaml:"name"               json:"name"               jsonschema:"required"`
	Type     string `yaml:"type"               json:"type"               jsonschema:"required,enum=string,enum=number,enum=boolean"`
	Format   string `yaml:"format,omitempty"   json:"format,omitempty"`
	Required bool   `yaml:"required"           json:"required"`
	Default  string `yaml:"default,omitempty"  json:"default,omitempty"`
	Example  string `yaml:"example,omitempty"  json:"example,omitempty"`
	Check    string `yaml:"check,omitempty"    json:"check,omitempty"` // expr constraint over `value`
}

// OutputField describes one entry of the aggregated extraction output.
type OutputField struct {
	Key         string `yaml:"key"                   json:"key"  jsonschema:"required"`
	Goal        string `yaml:"goal"                  json:"goal" jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Step is a single unit of work, a closed tagged union over Type. Only the
// fields belonging to the step's kind are set; domain validation enforces
// per-kind required fields and the targeting invariant (exactly zero or
// one of target_text / element_hash, zero only for kinds that take no
// target).
type Step struct {
	Type        string `yaml:"type"                  json:"type" jsonschema:"required,enum=navigate,enum=input,enum=click,enum=keypress,enum=select_change,enum=extract_page_content,enum=agent"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// navigate
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Targeting (input, click, keypress, select_change). TargetText may
	// carry a {placeholder}; ElementHash is opaque and never parameterized.
	TargetText    string `yaml:"target_text,omitempty"    json:"target_text,omitempty"`
	ContainerHint string `yaml:"container_hint,omitempty" json:"container_hint,omitempty"`
	ElementHash   string `yaml:"element_hash,omitempty"   json:"element_hash,omitempty"`

	// input
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// keypress
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// select_change
	SelectedText string `yaml:"selected_text,omitempty" json:"selected_text,omitempty"`

	// extract_page_content
	Goal      string `yaml:"goal,omitempty"       json:"goal,omitempty"`
	OutputKey string `yaml:"output_key,omitempty" json:"output_key,omitempty"`

	// agent
	Task     string `yaml:"task,omitempty"      json:"task,omitempty"`
	MaxSteps int    `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"pattern=^[0-9]+(ms|s|m)$"`
}

// TargetingCapable reports whether a step kind carries a targeting
// strategy. navigate, extract_page_content and agent require no target.
func TargetingCapable(kind string) bool {
	switch kind {
	case StepInput, StepClick, StepKeypress, StepSelectChange:
		return true
	}
	return false
}

// HasSemanticTarget reports whether the step targets by visible text.
func (s *Step) HasSemanticTarget() bool { return s.TargetText != "" }

// HasFingerprint reports whether the step targets by element fingerprint.
func (s *Step) HasFingerprint() bool { return s.ElementHash != "" }

// InputNames returns the declared input names in schema order.
func (w *Workflow) InputNames() []string {
	names := make([]string, 0, len(w.InputSchema))
	for _, in := range w.InputSchema {
		names = append(names, in.Name)
	}
	return names
}

// LoadFile reads and parses a workflow file. YAML is the native format;
// .json files are accepted for workflows produced by older recorders.
func LoadFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(f)
	}
	return Load(f)
}

// Load parses a workflow from YAML with strict unknown-field rejection.
func Load(r io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var w Workflow
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}
	return &w, nil
}

// LoadJSON parses a legacy JSON workflow document.
func LoadJSON(r io.Reader) (*Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w Workflow
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode workflow json: %w", err)
	}
	return &w, nil
}

// Marshal serializes a workflow to YAML.
func Marshal(w *Workflow) ([]byte, error) {
	data, err := yaml.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow: %w", err)
	}
	return data, nil
}
