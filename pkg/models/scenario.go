// Package models defines the core domain models for scenario-based workflow automation.
package models

import "time"

// Scenario is a workflow made of triggers feeding a graph of elements.
// Only Enabled is read by the engine; everything else belongs to authoring.
type Scenario struct {
	ID        string     `json:"id"         validate:"required"`
	Name      string     `json:"name"       validate:"required,min=3"`
	Enabled   bool       `json:"enabled"`
	Triggers  []*Trigger `json:"triggers"   validate:"dive"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Trigger is the entry point of a scenario, matched against external event codes.
type Trigger struct {
	ID         string `json:"id"          validate:"required"`
	ScenarioID string `json:"scenario_id" validate:"required"`
	EventCode  string `json:"event_code"  validate:"required"`
}

// TriggersFor returns the scenario triggers listening on the given event code.
func (s *Scenario) TriggersFor(eventCode string) []*Trigger {
	matches := make([]*Trigger, 0)

	for _, trigger := range s.Triggers {
		if trigger.EventCode == eventCode {
			matches = append(matches, trigger)
		}
	}

	return matches
}
