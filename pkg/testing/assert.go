package testing

import (
	"fmt"
	"strconv"
)

// Evaluate checks every assertion in spec against what the replay
// observed. Every spec field that is set yields at least one result.
func Evaluate(spec *TestSpec, obs *Observation) []AssertionResult {
	var results []AssertionResult

	if spec.ExpectedOutcome != "" {
		passed := spec.ExpectedOutcome == obs.Outcome
		results = append(results, AssertionResult{
			Type:     "expected_outcome",
			Expected: spec.ExpectedOutcome,
			Actual:   obs.Outcome,
			Passed:   passed,
			Message:  outcomeMessage(spec.ExpectedOutcome, obs.Outcome, passed),
		})
	}

	for key, want := range spec.ExpectedOutputs {
		got, ok := obs.Outputs[key]
		r := AssertionResult{
			Type:     "expected_output",
			Key:      key,
			Expected: want,
			Actual:   got,
		}
		switch {
		case !ok:
			r.Message = fmt.Sprintf("output %q was never extracted", key)
		case got != want:
			r.Message = fmt.Sprintf("output %q = %q, want %q", key, got, want)
		default:
			r.Passed = true
			r.Message = fmt.Sprintf("output %q matches", key)
		}
		results = append(results, r)
	}

	for index, want := range spec.ExpectedStepStatus {
		got, ok := obs.StepStatuses[index]
		r := AssertionResult{
			Type:     "expected_step_status",
			Key:      strconv.Itoa(index),
			Expected: want,
			Actual:   got,
		}
		switch {
		case !ok:
			r.Message = fmt.Sprintf("step %d never ran", index)
		case got != want:
			r.Message = fmt.Sprintf("step %d is %s, want %s", index, got, want)
		default:
			r.Passed = true
			r.Message = fmt.Sprintf("step %d is %s", index, want)
		}
		results = append(results, r)
	}

	if spec.MaxEscalations != nil {
		passed := obs.Escalations <= *spec.MaxEscalations
		r := AssertionResult{
			Type:     "max_escalations",
			Expected: strconv.Itoa(*spec.MaxEscalations),
			Actual:   strconv.Itoa(obs.Escalations),
			Passed:   passed,
		}
		if passed {
			r.Message = fmt.Sprintf("%d escalation(s), within budget", obs.Escalations)
		} else {
			r.Message = fmt.Sprintf("%d escalation(s), budget is %d", obs.Escalations, *spec.MaxEscalations)
		}
		results = append(results, r)
	}

	return results
}

// HasFailures reports whether any assertion failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func outcomeMessage(expected, actual string, passed bool) string {
	if passed {
		return fmt.Sprintf("run %s as expected", actual)
	}
	return fmt.Sprintf("run %s, expected %s", actual, expected)
}
