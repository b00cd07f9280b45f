package models

// Edge connects a trigger or an element to the element that follows it.
// Exactly one of SourceTriggerID and SourceElementID is set.
type Edge struct {
	ScenarioID      string `json:"scenario_id"`
	SourceTriggerID string `json:"source_trigger_id,omitempty"`
	SourceElementID string `json:"source_element_id,omitempty"`
	TargetElementID string `json:"target_element_id"`
	// Positive restricts the edge to one outcome of the source element
	// (e.g. "user is in segment"). Nil edges are always followed.
	Positive *bool `json:"positive,omitempty"`
}

// Follows reports whether the edge is taken for the given source outcome.
func (e *Edge) Follows(outcome *bool) bool {
	if e.Positive == nil {
		return true
	}

	return outcome != nil && *outcome == *e.Positive
}

// Graph is a snapshot of every live edge of every enabled scenario.
type Graph struct {
	Version string  `json:"version"`
	Edges   []*Edge `json:"edges"`
}
