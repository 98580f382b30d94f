// Package testing defines the test specification schema, assertion
// evaluator, and scenario runner for offline workflow replay testing.
package testing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestSpec defines the expected outcome of one scenario replay.
// All fields are optional; omitted fields are not asserted.
type TestSpec struct {
	// ExpectedOutcome is "succeeded" or "failed".
	ExpectedOutcome string `yaml:"expected_outcome,omitempty" json:"expected_outcome,omitempty"`

	// ExpectedOutputs asserts exact values in the aggregated extraction
	// output, keyed by output key.
	ExpectedOutputs map[string]string `yaml:"expected_outputs,omitempty" json:"expected_outputs,omitempty"`

	// ExpectedStepStatus asserts the final status of individual steps,
	// keyed by zero-based step index.
	ExpectedStepStatus map[int]string `yaml:"expected_step_status,omitempty" json:"expected_step_status,omitempty"`

	// MaxEscalations bounds how many steps may fall through to the agent.
	// Zero asserts a fully deterministic replay.
	MaxEscalations *int `yaml:"max_escalations,omitempty" json:"max_escalations,omitempty"`

	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"        json:"tags,omitempty"`
}

// LoadTestSpec reads and parses a test.yaml file.
func LoadTestSpec(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test spec: %w", err)
	}
	return ParseTestSpec(data)
}

// ParseTestSpec parses a TestSpec from raw YAML bytes.
func ParseTestSpec(data []byte) (*TestSpec, error) {
	var spec TestSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse test spec: %w", err)
	}
	return &spec, nil
}
