package replay

import (
	"context"

	"github.com/ormasoftchile/webrun/pkg/driver"
)

// Recorder wraps a real driver and captures everything it successfully
// serves into a scenario, so a live run can later be replayed offline.
// Lookup misses are not captured: a scenario only scripts the surface the
// run actually used.
type Recorder struct {
	inner    driver.Driver
	Scenario Scenario
}

// NewRecorder wraps inner.
func NewRecorder(inner driver.Driver) *Recorder {
	return &Recorder{inner: inner}
}

func (r *Recorder) Navigate(ctx context.Context, url string) error {
	if err := r.inner.Navigate(ctx, url); err != nil {
		return err
	}
	for _, seen := range r.Scenario.Navigations {
		if seen == url {
			return nil
		}
	}
	r.Scenario.Navigations = append(r.Scenario.Navigations, url)
	return nil
}

func (r *Recorder) LocateBySemanticText(ctx context.Context, text, containerHint string) (driver.ElementRef, error) {
	ref, err := r.inner.LocateBySemanticText(ctx, text, containerHint)
	if err != nil {
		return nil, err
	}
	r.addElement(ScenarioElement{Text: text, ContainerHint: containerHint})
	return ref, nil
}

func (r *Recorder) LocateByFingerprint(ctx context.Context, fingerprint string) (driver.ElementRef, error) {
	ref, err := r.inner.LocateByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	r.addElement(ScenarioElement{Fingerprint: fingerprint})
	return ref, nil
}

func (r *Recorder) PerformAction(ctx context.Context, ref driver.ElementRef, kind driver.ActionKind, value string) error {
	return r.inner.PerformAction(ctx, ref, kind, value)
}

func (r *Recorder) Extract(ctx context.Context, goal string) (string, error) {
	content, err := r.inner.Extract(ctx, goal)
	if err != nil {
		return "", err
	}
	for _, ex := range r.Scenario.Extracts {
		if ex.Goal == goal {
			return content, nil
		}
	}
	r.Scenario.Extracts = append(r.Scenario.Extracts, ScenarioExtract{Goal: goal, Content: content})
	return content, nil
}

func (r *Recorder) addElement(el ScenarioElement) {
	for _, seen := range r.Scenario.Elements {
		if seen.Text == el.Text && seen.ContainerHint == el.ContainerHint && seen.Fingerprint == el.Fingerprint {
			return
		}
	}
	r.Scenario.Elements = append(r.Scenario.Elements, el)
}
