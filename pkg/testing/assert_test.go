package testing

import "testing"

func intPtr(n int) *int { return &n }

func TestEvaluateAllPassing(t *testing.T) {
	spec := &TestSpec{
		ExpectedOutcome: "succeeded",
		ExpectedOutputs: map[string]string{"greeting": "hello"},
		ExpectedStepStatus: map[int]string{
			0: "passed",
		},
		MaxEscalations: intPtr(1),
	}
	obs := &Observation{
		Outcome:      "succeeded",
		Outputs:      map[string]string{"greeting": "hello"},
		StepStatuses: map[int]string{0: "passed", 1: "passed"},
		Escalations:  1,
	}

	results := Evaluate(spec, obs)
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	if HasFailures(results) {
		t.Errorf("unexpected failures: %v", results)
	}
}

func TestEvaluateFailures(t *testing.T) {
	spec := &TestSpec{
		ExpectedOutcome:    "succeeded",
		ExpectedOutputs:    map[string]string{"price": "42.10", "ticker": "ACME"},
		ExpectedStepStatus: map[int]string{5: "passed"},
		MaxEscalations:     intPtr(0),
	}
	obs := &Observation{
		Outcome:      "failed",
		Outputs:      map[string]string{"price": "13.37"},
		StepStatuses: map[int]string{0: "passed"},
		Escalations:  2,
	}

	results := Evaluate(spec, obs)
	if !HasFailures(results) {
		t.Fatal("expected failures")
	}
	failed := map[string]bool{}
	for _, r := range results {
		if !r.Passed {
			failed[r.Type+"/"+r.Key] = true
		}
	}
	for _, want := range []string{
		"expected_outcome/",
		"expected_output/price",  // wrong value
		"expected_output/ticker", // never extracted
		"expected_step_status/5", // never ran
		"max_escalations/",
	} {
		if !failed[want] {
			t.Errorf("missing failure %s in %v", want, results)
		}
	}
}

func TestEvaluateEmptySpec(t *testing.T) {
	results := Evaluate(&TestSpec{}, &Observation{Outcome: "failed"})
	if len(results) != 0 {
		t.Errorf("empty spec must assert nothing, got %v", results)
	}
}

func TestParseTestSpec(t *testing.T) {
	spec, err := ParseTestSpec([]byte(`expected_outcome: failed
expected_outputs:
  status: Shipped
max_escalations: 0
tags: [regression]
`))
	if err != nil {
		t.Fatalf("ParseTestSpec error: %v", err)
	}
	if spec.ExpectedOutcome != "failed" || spec.ExpectedOutputs["status"] != "Shipped" {
		t.Errorf("spec = %+v", spec)
	}
	if spec.MaxEscalations == nil || *spec.MaxEscalations != 0 {
		t.Errorf("MaxEscalations = %v", spec.MaxEscalations)
	}
}
