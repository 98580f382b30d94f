package replay

import (
	"context"
	"fmt"

	"github.com/ormasoftchile/webrun/pkg/driver"
)

// ScenarioDriver implements driver.Driver against a scenario script.
// Fail-closed: any interaction the scenario does not cover returns a hard
// error, never a fabricated success.
type ScenarioDriver struct {
	scenario *Scenario

	// Performed logs every successful action for post-run assertions.
	Performed []PerformedAction
}

// PerformedAction is one successful driver action during replay.
type PerformedAction struct {
	Kind   driver.ActionKind
	Target string
	Value  string
}

// scenarioRef is a handle to a scripted element.
type scenarioRef struct {
	el *ScenarioElement
}

func (r *scenarioRef) Describe() string {
	if r.el.Text != "" {
		return fmt.Sprintf("text=%q", r.el.Text)
	}
	return fmt.Sprintf("fingerprint=%s", r.el.Fingerprint)
}

// NewScenarioDriver wraps a loaded scenario as a driver.
func NewScenarioDriver(s *Scenario) *ScenarioDriver {
	return &ScenarioDriver{scenario: s}
}

func (d *ScenarioDriver) Navigate(_ context.Context, url string) error {
	for _, allowed := range d.scenario.Navigations {
		if allowed == url {
			return nil
		}
	}
	return fmt.Errorf("unscripted navigation to %s", url)
}

func (d *ScenarioDriver) LocateBySemanticText(_ context.Context, text, containerHint string) (driver.ElementRef, error) {
	for i := range d.scenario.Elements {
		el := &d.scenario.Elements[i]
		if el.Text != text {
			continue
		}
		if containerHint != "" && el.ContainerHint != "" && el.ContainerHint != containerHint {
			continue
		}
		switch {
		case el.Missing:
			return nil, driver.ErrNotFound
		case el.Ambiguous:
			return nil, driver.ErrAmbiguous
		}
		return &scenarioRef{el: el}, nil
	}
	return nil, fmt.Errorf("unscripted element lookup %q", text)
}

func (d *ScenarioDriver) LocateByFingerprint(_ context.Context, fingerprint string) (driver.ElementRef, error) {
	for i := range d.scenario.Elements {
		el := &d.scenario.Elements[i]
		if el.Fingerprint != fingerprint {
			continue
		}
		if el.Missing {
			return nil, driver.ErrNotFound
		}
		return &scenarioRef{el: el}, nil
	}
	return nil, fmt.Errorf("unscripted fingerprint lookup %q", fingerprint)
}

func (d *ScenarioDriver) PerformAction(_ context.Context, ref driver.ElementRef, kind driver.ActionKind, value string) error {
	sr, ok := ref.(*scenarioRef)
	if !ok {
		return fmt.Errorf("foreign element ref %T", ref)
	}
	if sr.el.FailAction != "" {
		return fmt.Errorf("scripted failure: %s", sr.el.FailAction)
	}
	d.Performed = append(d.Performed, PerformedAction{
		Kind:   kind,
		Target: sr.Describe(),
		Value:  value,
	})
	return nil
}

func (d *ScenarioDriver) Extract(_ context.Context, goal string) (string, error) {
	for _, ex := range d.scenario.Extracts {
		if ex.Goal == goal {
			return ex.Content, nil
		}
	}
	return "", fmt.Errorf("unscripted extraction %q", goal)
}
