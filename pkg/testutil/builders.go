// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/stretchr/testify/require"
)

const (
	WelcomeScenarioID = "welcome"
	WelcomeTriggerID  = "welcome-signup"
	WelcomeEventCode  = "signup"
)

// CreateTestScenario creates an enabled scenario with default values that can be overridden.
func CreateTestScenario(id string, overrides ...func(*models.Scenario)) *models.Scenario {
	scenario := &models.Scenario{
		ID:       id,
		Name:     "Scenario " + id,
		Enabled:  true,
		Triggers: make([]*models.Trigger, 0),
	}

	for _, override := range overrides {
		override(scenario)
	}

	return scenario
}

// WithTrigger adds a trigger listening on eventCode.
func WithTrigger(id, eventCode string) func(*models.Scenario) {
	return func(s *models.Scenario) {
		s.Triggers = append(s.Triggers, &models.Trigger{ID: id, ScenarioID: s.ID, EventCode: eventCode})
	}
}

// WithDisabled disables the scenario.
func WithDisabled() func(*models.Scenario) {
	return func(s *models.Scenario) {
		s.Enabled = false
	}
}

// CreateTestElement creates an element of the given type that can be overridden.
func CreateTestElement(scenarioID, id string, elementType models.ElementType, overrides ...func(*models.Element)) *models.Element {
	element := &models.Element{
		ID:         id,
		ScenarioID: scenarioID,
		Type:       elementType,
	}

	for _, override := range overrides {
		override(element)
	}

	return element
}

// WithOptions sets the raw JSON options of the element.
func WithOptions(options string) func(*models.Element) {
	return func(e *models.Element) {
		e.Options = json.RawMessage(options)
	}
}

// SeedWelcome saves the enabled "welcome" scenario with one trigger on "signup".
func SeedWelcome(t *testing.T, p persistence.Persistence) *models.Scenario {
	t.Helper()

	scenario := CreateTestScenario(WelcomeScenarioID, WithTrigger(WelcomeTriggerID, WelcomeEventCode))
	require.NoError(t, p.ScenarioRepository().SaveScenario(t.Context(), scenario))

	return scenario
}
