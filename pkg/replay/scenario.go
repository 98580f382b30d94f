// Package replay provides a scripted browser driver for deterministic
// offline workflow execution. A scenario file pre-records every page
// interaction; anything the scenario does not script fails the run instead
// of silently passing.
package replay

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario pre-records the page surface a workflow run is allowed to
// touch.
type Scenario struct {
	Navigations []string          `yaml:"navigations,omitempty"` // URLs the run may load
	Elements    []ScenarioElement `yaml:"elements,omitempty"`
	Extracts    []ScenarioExtract `yaml:"extracts,omitempty"`
}

// ScenarioElement scripts one locatable element. Missing and Ambiguous
// script deliberate lookup outcomes so escalation paths can be exercised
// offline.
type ScenarioElement struct {
	Text          string `yaml:"text,omitempty"`
	ContainerHint string `yaml:"container_hint,omitempty"`
	Fingerprint   string `yaml:"fingerprint,omitempty"`
	Missing       bool   `yaml:"missing,omitempty"`
	Ambiguous     bool   `yaml:"ambiguous,omitempty"`
	FailAction    string `yaml:"fail_action,omitempty"` // non-empty fails the action with this message
}

// ScenarioExtract scripts the content returned for one extraction goal.
type ScenarioExtract struct {
	Goal    string `yaml:"goal"`
	Content string `yaml:"content"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Navigations) == 0 && len(s.Elements) == 0 && len(s.Extracts) == 0 {
		return nil, fmt.Errorf("scenario scripts nothing")
	}
	return &s, nil
}

// Save writes the scenario as YAML.
func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}
