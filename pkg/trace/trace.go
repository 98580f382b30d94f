// Package trace defines the Go struct types for recorded browser-agent
// traces and provides strict JSON parsing. A trace is produced by the
// external recorder, consumed once by the compiler, and never mutated.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Entry is one recorded agent action: the page it happened on, the raw
// actions taken, their outcomes, and the DOM elements interacted with.
type Entry struct {
	URL                string              `json:"url"`
	Title              string              `json:"title"`
	Actions            []RecordedAction    `json:"actions"`
	Results            []ActionResult      `json:"results"`
	InteractedElements []InteractedElement `json:"interacted_elements"`
}

// RecordedAction is a single raw action with a kind tag and parameters.
// Which parameters are meaningful depends on Kind.
type RecordedAction struct {
	Kind         string `json:"kind"`
	URL          string `json:"url,omitempty"`           // navigate / go_to_url
	Text         string `json:"text,omitempty"`          // input_text, selected option text
	Keys         string `json:"keys,omitempty"`          // send_keys
	Goal         string `json:"goal,omitempty"`          // extract_content
	Index        *int   `json:"index,omitempty"`         // interacted element index
	SelectedText string `json:"selected_text,omitempty"` // select_dropdown_option
}

// ActionResult is the recorded outcome of one action.
type ActionResult struct {
	Success          bool   `json:"success"`
	ExtractedContent string `json:"extracted_content,omitempty"`
}

// InteractedElement describes one DOM element the agent touched. The
// semantic text fields come from the recorder's accessibility snapshot;
// ElementHash is an opaque stable identifier unique per element instance
// at recording time. webrun treats it as an immutable byte string and
// never derives or mutates it.
type InteractedElement struct {
	TagName       string `json:"tag_name,omitempty"`
	VisibleText   string `json:"visible_text,omitempty"`
	AriaLabel     string `json:"aria_label,omitempty"`
	Title         string `json:"title,omitempty"`
	Placeholder   string `json:"placeholder,omitempty"`
	Alt           string `json:"alt,omitempty"`
	Value         string `json:"value,omitempty"`
	Name          string `json:"name,omitempty"`
	ID            string `json:"id,omitempty"`
	Href          string `json:"href,omitempty"`
	ContainerHint string `json:"container_hint,omitempty"` // nearby heading or region label
	ElementHash   string `json:"element_hash,omitempty"`   // opaque fingerprint
	Dynamic       bool   `json:"dynamic,omitempty"`        // recorder flagged the element as unstable across runs
}

// skippableKinds are recorder actions that do not translate to workflow
// steps and are dropped at compile time.
var skippableKinds = map[string]bool{
	"done":          true,
	"switch_tab":    true,
	"close_tab":     true,
	"write_file":    true,
	"replace_file":  true,
	"read_file":     true,
	"search_google": true,
}

// Skippable reports whether a recorded action kind has no workflow
// equivalent.
func Skippable(kind string) bool {
	return skippableKinds[kind]
}

// LoadFile reads and parses a trace JSON file with strict unknown-field
// rejection.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses an ordered sequence of trace entries from JSON. Unknown
// fields are rejected so recorder format drift fails loudly instead of
// silently dropping data.
func Load(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	return entries, nil
}

// ElementForAction returns the interacted element a recorded action refers
// to, or nil when the action carries no element index or the index is out
// of range.
func ElementForAction(entry *Entry, action *RecordedAction) *InteractedElement {
	if action.Index == nil {
		return nil
	}
	i := *action.Index
	if i < 0 || i >= len(entry.InteractedElements) {
		return nil
	}
	return &entry.InteractedElements[i]
}
