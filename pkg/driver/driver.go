// Package driver defines the browser driver interface consumed by the
// replay executor, and its rod-backed implementation. The driver owns all
// real DOM access; the executor only sees opaque element handles.
package driver

import (
	"context"
	"errors"
)

// Sentinel lookup results. NotFound and Ambiguous are expected outcomes of
// element resolution, not driver failures; everything else returned from a
// locate call is a DriverError.
var (
	ErrNotFound  = errors.New("element not found")
	ErrAmbiguous = errors.New("ambiguous element match")
)

// ActionKind identifies the DOM action to perform on a located element.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionInput    ActionKind = "input"
	ActionKeypress ActionKind = "keypress"
	ActionSelect   ActionKind = "select"
)

// ElementRef is an opaque handle to a located element. It is owned by the
// driver that produced it and valid until the next page mutation.
type ElementRef interface {
	// Describe returns a human-readable description for logs and errors.
	Describe() string
}

// Driver is the browser automation collaborator. One driver session is
// exclusively owned by one workflow run; implementations need not be safe
// for concurrent use.
type Driver interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error

	// LocateBySemanticText finds the element whose visible text, label,
	// placeholder or accessible name matches text. A non-empty
	// containerHint scopes the search to the region under a matching
	// heading or landmark. Returns ErrNotFound or ErrAmbiguous as
	// resolution outcomes.
	LocateBySemanticText(ctx context.Context, text, containerHint string) (ElementRef, error)

	// LocateByFingerprint finds the element carrying the opaque fingerprint
	// recorded at capture time. Fingerprints either match or are stale:
	// the only sentinel is ErrNotFound.
	LocateByFingerprint(ctx context.Context, fingerprint string) (ElementRef, error)

	// PerformAction executes kind against a located element. value carries
	// the text to type, the key to press, or the option to select.
	PerformAction(ctx context.Context, ref ElementRef, kind ActionKind, value string) error

	// Extract collects page content relevant to goal.
	Extract(ctx context.Context, goal string) (string, error)
}

// Screenshotter is implemented by drivers that can capture the current
// page. The executor uses it for failure evidence; scripted drivers have
// no pixels and simply don't implement it.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
