package types

import "time"

// Location is a point in screen (page) coordinates, usually the center of a match.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Match is the perception result for one visual reference.
type Match struct {
	// Reference is the id of the visual reference that was searched for.
	Reference string `json:"reference"`

	// Found reports whether the reference was seen with confidence at or above
	// the requested threshold.
	Found bool `json:"found"`

	// Location is the center of the match. Meaningless when Found is false.
	Location Location `json:"location"`

	// Confidence is the matcher score in [0, 1].
	Confidence float64 `json:"confidence"`
}

// ObservedState is one perception sample: the matches for every reference
// polled in the cycle plus the time the sample was taken. It is consumed once
// and never persisted.
type ObservedState struct {
	Matches   map[string]Match `json:"matches"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewObservedState creates an empty observation taken at ts.
func NewObservedState(ts time.Time) ObservedState {
	return ObservedState{
		Matches:   make(map[string]Match),
		Timestamp: ts,
	}
}

// Add records a match, replacing any previous match for the same reference.
func (o *ObservedState) Add(m Match) {
	if o.Matches == nil {
		o.Matches = make(map[string]Match)
	}
	o.Matches[m.Reference] = m
}

// Get returns the match recorded for reference.
func (o ObservedState) Get(reference string) (Match, bool) {
	m, ok := o.Matches[reference]
	return m, ok
}

// Seen reports whether reference was found with confidence >= threshold.
func (o ObservedState) Seen(reference string, threshold float64) bool {
	m, ok := o.Matches[reference]
	return ok && m.Found && m.Confidence >= threshold
}

// Missing returns the references among refs that were not seen at threshold,
// in the order given.
func (o ObservedState) Missing(refs []string, threshold float64) []string {
	var missing []string
	for _, ref := range refs {
		if !o.Seen(ref, threshold) {
			missing = append(missing, ref)
		}
	}
	return missing
}
