package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/ormasoftchile/webrun/pkg/driver"
)

type stubRef struct{ desc string }

func (s stubRef) Describe() string { return s.desc }

// stubDriver records the calls the tool dispatcher makes.
type stubDriver struct {
	locateErr error
	actions   []string
	navigated []string
}

func (d *stubDriver) Navigate(_ context.Context, url string) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *stubDriver) LocateBySemanticText(_ context.Context, text, _ string) (driver.ElementRef, error) {
	if d.locateErr != nil {
		return nil, d.locateErr
	}
	return stubRef{desc: text}, nil
}

func (d *stubDriver) LocateByFingerprint(context.Context, string) (driver.ElementRef, error) {
	return nil, driver.ErrNotFound
}

func (d *stubDriver) PerformAction(_ context.Context, ref driver.ElementRef, kind driver.ActionKind, value string) error {
	d.actions = append(d.actions, string(kind)+":"+ref.Describe()+":"+value)
	return nil
}

func (d *stubDriver) Extract(context.Context, string) (string, error) { return "page", nil }

func TestRunToolClick(t *testing.T) {
	d := &stubDriver{}
	result, err := runTool(context.Background(), d, "click", map[string]any{"text": "Submit"})
	if err != nil {
		t.Fatalf("runTool error: %v", err)
	}
	if !strings.Contains(result, "clicked") {
		t.Errorf("result = %q", result)
	}
	if len(d.actions) != 1 || d.actions[0] != "click:Submit:" {
		t.Errorf("actions = %v", d.actions)
	}
}

func TestRunToolTypeAndSelect(t *testing.T) {
	d := &stubDriver{}
	if _, err := runTool(context.Background(), d, "type",
		map[string]any{"text": "Email", "value": "a@b.io"}); err != nil {
		t.Fatalf("type error: %v", err)
	}
	if _, err := runTool(context.Background(), d, "select",
		map[string]any{"text": "Quarter", "option": "Q3 2025"}); err != nil {
		t.Fatalf("select error: %v", err)
	}
	want := []string{"input:Email:a@b.io", "select:Quarter:Q3 2025"}
	if len(d.actions) != 2 || d.actions[0] != want[0] || d.actions[1] != want[1] {
		t.Errorf("actions = %v, want %v", d.actions, want)
	}
}

func TestRunToolNavigate(t *testing.T) {
	d := &stubDriver{}
	if _, err := runTool(context.Background(), d, "navigate",
		map[string]any{"url": "https://example.com"}); err != nil {
		t.Fatalf("navigate error: %v", err)
	}
	if len(d.navigated) != 1 || d.navigated[0] != "https://example.com" {
		t.Errorf("navigated = %v", d.navigated)
	}
}

// Lookup misses come back as result text so the model can adjust, instead
// of aborting the whole task.
func TestRunToolLookupMissIsNotAnError(t *testing.T) {
	d := &stubDriver{locateErr: driver.ErrNotFound}
	result, err := runTool(context.Background(), d, "click", map[string]any{"text": "Ghost"})
	if err != nil {
		t.Fatalf("lookup miss must not error: %v", err)
	}
	if !strings.Contains(result, "could not locate") {
		t.Errorf("result = %q", result)
	}
}

func TestRunToolUnknownName(t *testing.T) {
	if _, err := runTool(context.Background(), &stubDriver{}, "teleport", nil); err == nil {
		t.Fatal("unknown tool must error")
	}
}

func TestBuildMessagesIncludesHistoryAndPage(t *testing.T) {
	history := []actionRecord{{Action: "click", Args: `{"text":"Next"}`, Result: "clicked"}}
	messages := buildMessages("find the price", history, "PAGE TEXT")
	if len(messages) != 3 {
		t.Fatalf("messages = %d, want system+history+task", len(messages))
	}

	messages = buildMessages("find the price", nil, "PAGE TEXT")
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want system+task without history", len(messages))
	}
}

func TestBudgetExceededError(t *testing.T) {
	err := &BudgetExceededError{Task: "t", MaxSteps: 5}
	if !strings.Contains(err.Error(), "5") {
		t.Errorf("error = %q", err.Error())
	}
}
