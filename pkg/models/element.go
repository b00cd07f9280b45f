package models

import (
	"encoding/json"
	"time"
)

// ElementType identifies the kind of work a graph node performs.
type ElementType string

const (
	ElementTypeEmail     ElementType = "email"
	ElementTypeGoal      ElementType = "goal"
	ElementTypeSegment   ElementType = "segment"
	ElementTypeCondition ElementType = "condition"
	ElementTypeWait      ElementType = "wait"
	ElementTypeBanner    ElementType = "banner"
)

// ElementTypes lists every element type known to the system.
func ElementTypes() []ElementType {
	return []ElementType{
		ElementTypeEmail,
		ElementTypeGoal,
		ElementTypeSegment,
		ElementTypeCondition,
		ElementTypeWait,
		ElementTypeBanner,
	}
}

// Valid reports whether t is one of ElementTypes.
func (t ElementType) Valid() bool {
	for _, known := range ElementTypes() {
		if t == known {
			return true
		}
	}

	return false
}

// Element is one typed node of a scenario graph. Elements are soft-deleted:
// DeletedAt is set instead of removing the row, so jobs keep their history.
type Element struct {
	ID         string          `json:"id"                   validate:"required"`
	ScenarioID string          `json:"scenario_id"          validate:"required"`
	Type       ElementType     `json:"type"                 validate:"required"`
	Options    json.RawMessage `json:"options,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}

// Deleted reports whether the element was soft-deleted.
func (e *Element) Deleted() bool {
	return e.DeletedAt != nil
}
