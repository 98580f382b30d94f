package classifier

import (
	"regexp"

	"github.com/ormasoftchile/webrun/pkg/schema"
)

// markerRe matches manual variable markers of the form VAR:name:value.
// The value runs until whitespace or end of string.
var markerRe = regexp.MustCompile(`VAR:([a-z_][a-z0-9_]*):(\S+)`)

// Marker is one extracted VAR:name:value annotation.
type Marker struct {
	Text  string // the full marker text
	Name  string
	Value string
}

// ExtractMarkers returns all manual variable markers in a string.
func ExtractMarkers(s string) []Marker {
	var markers []Marker
	for _, m := range markerRe.FindAllStringSubmatch(s, -1) {
		markers = append(markers, Marker{Text: m[0], Name: m[1], Value: m[2]})
	}
	return markers
}

// ProcessMarkers scans every marker-bearing step field of a workflow,
// replaces each marked field with a {name} placeholder, and merges the
// extracted variables into the input schema. The marker's value becomes
// the input's example. Returns the inputs that were newly extracted.
func ProcessMarkers(w *schema.Workflow) []schema.InputDef {
	existing := make(map[string]bool)
	for _, in := range w.InputSchema {
		existing[in.Name] = true
	}

	var extracted []schema.InputDef
	record := func(m Marker) {
		if existing[m.Name] {
			return
		}
		existing[m.Name] = true
		def := schema.InputDef{
			Name:     m.Name,
			Type:     inferType(m.Value),
			Format:   inferFormat(m.Value),
			Required: true,
			Example:  m.Value,
		}
		extracted = append(extracted, def)
		w.InputSchema = append(w.InputSchema, def)
	}

	for i := range w.Steps {
		step := &w.Steps[i]
		for _, field := range []*string{
			&step.Value, &step.SelectedText, &step.URL, &step.TargetText, &step.Task,
		} {
			markers := ExtractMarkers(*field)
			if len(markers) == 0 {
				continue
			}
			for _, m := range markers {
				record(m)
			}
			// A marker stands for the whole field value: replace the field
			// with the placeholder of the first marker.
			*field = "{" + markers[0].Name + "}"
		}
	}
	return extracted
}
