// Package targeting chooses an element-targeting strategy for each
// recorded action at compile time, and re-resolves that strategy at run
// time with an explicit retry/escalation state machine.
package targeting

import (
	"fmt"

	"github.com/ormasoftchile/webrun/pkg/trace"
)

// DecisionKind is the targeting strategy chosen at compile time.
type DecisionKind int

const (
	// DecideSemantic targets by visible text/label, optionally scoped by a
	// container hint.
	DecideSemantic DecisionKind = iota
	// DecideFingerprint targets by the recorder's opaque element hash.
	DecideFingerprint
	// DecideAgentic defers the step to the reasoning collaborator.
	DecideAgentic
)

func (k DecisionKind) String() string {
	switch k {
	case DecideSemantic:
		return "semantic"
	case DecideFingerprint:
		return "fingerprint"
	case DecideAgentic:
		return "agentic"
	}
	return fmt.Sprintf("DecisionKind(%d)", int(k))
}

// Decision is the outcome of compile-time strategy selection: exactly one
// strategy, never both, never none.
type Decision struct {
	Kind          DecisionKind
	Text          string // semantic target text
	ContainerHint string // disambiguator for repeated text
	Fingerprint   string // opaque element hash, copied verbatim
	Reason        string // why the step went agentic
}

// Choose picks the targeting strategy for one recorded element. text is
// the element's best semantic text as extracted by the classifier (it may
// later be replaced by a placeholder when classified variable).
//
// Semantic text always wins over a fingerprint: fingerprints are brittle
// across page re-renders. A fingerprint is chosen only when no stable text
// exists and the recorder did not flag the element as dynamic. A
// fingerprint that shifts between runs (a row in a regenerated list) is
// worthless at replay time, and that judgment is made here, at compile
// time, not inferred during the run.
func Choose(el *trace.InteractedElement, text string) Decision {
	if el == nil {
		return Decision{Kind: DecideAgentic, Reason: "no recorded element for this action"}
	}
	if text != "" {
		return Decision{Kind: DecideSemantic, Text: text, ContainerHint: el.ContainerHint}
	}
	if el.ElementHash != "" && !el.Dynamic {
		return Decision{Kind: DecideFingerprint, Fingerprint: el.ElementHash}
	}
	if el.Dynamic {
		return Decision{Kind: DecideAgentic, Reason: "element is dynamic across runs with no stable text"}
	}
	return Decision{Kind: DecideAgentic, Reason: "element exposes neither stable text nor a fingerprint"}
}
