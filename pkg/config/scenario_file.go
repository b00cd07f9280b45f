// Package config loads scenario definitions from YAML files.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"gopkg.in/yaml.v3"
)

// ScenarioFile is the structure of a scenarios.yaml file.
type ScenarioFile struct {
	Scenarios []ScenarioConfig `yaml:"scenarios"`
}

type ScenarioConfig struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Enabled  bool            `yaml:"enabled"`
	Triggers []TriggerConfig `yaml:"triggers"`
	Elements []ElementConfig `yaml:"elements"`
	Edges    []EdgeConfig    `yaml:"edges"`
}

type TriggerConfig struct {
	ID        string `yaml:"id"`
	EventCode string `yaml:"event_code"`
}

type ElementConfig struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// EdgeConfig links from_trigger or from_element to the element "to".
// positive restricts the edge to one outcome of a segment or condition.
type EdgeConfig struct {
	FromTrigger string `yaml:"from_trigger"`
	FromElement string `yaml:"from_element"`
	To          string `yaml:"to"`
	Positive    *bool  `yaml:"positive"`
}

// LoadScenarioFile reads and validates a scenario file.
func LoadScenarioFile(filepath string) (*ScenarioFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", filepath, err)
	}

	return ParseScenarioFile(data)
}

func ParseScenarioFile(data []byte) (*ScenarioFile, error) {
	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML scenario file: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	return &file, nil
}

// Validate checks ids, element types, element options and edge endpoints.
func (f *ScenarioFile) Validate() error {
	if len(f.Scenarios) == 0 {
		return errors.New("at least one scenario must be defined")
	}

	seen := make(map[string]bool)

	for i, scenario := range f.Scenarios {
		if err := scenario.validate(seen); err != nil {
			return fmt.Errorf("scenarios[%d]: %w", i, err)
		}
	}

	return nil
}

func (s ScenarioConfig) validate(seen map[string]bool) error {
	if s.ID == "" {
		return errors.New("id is required")
	}

	if s.Name == "" {
		return errors.New("name is required")
	}

	triggers := make(map[string]bool, len(s.Triggers))
	elements := make(map[string]bool, len(s.Elements))

	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s id is required", kind)
		}

		if seen[id] {
			return fmt.Errorf("duplicate id %q", id)
		}

		seen[id] = true

		return nil
	}

	if err := claim("scenario", s.ID); err != nil {
		return err
	}

	for j, trigger := range s.Triggers {
		if err := claim("trigger", trigger.ID); err != nil {
			return fmt.Errorf("triggers[%d]: %w", j, err)
		}

		if trigger.EventCode == "" {
			return fmt.Errorf("triggers[%d]: event_code is required", j)
		}

		triggers[trigger.ID] = true
	}

	for j, element := range s.Elements {
		if err := claim("element", element.ID); err != nil {
			return fmt.Errorf("elements[%d]: %w", j, err)
		}

		model, err := element.model(s.ID)
		if err != nil {
			return fmt.Errorf("elements[%d]: %w", j, err)
		}

		if !model.Type.Valid() {
			return fmt.Errorf("elements[%d]: unknown element type %q", j, element.Type)
		}

		if err := model.ValidateOptions(); err != nil {
			return fmt.Errorf("elements[%d]: %w", j, err)
		}

		elements[element.ID] = true
	}

	for j, edge := range s.Edges {
		switch {
		case (edge.FromTrigger == "") == (edge.FromElement == ""):
			return fmt.Errorf("edges[%d]: exactly one of from_trigger and from_element is required", j)
		case edge.FromTrigger != "" && !triggers[edge.FromTrigger]:
			return fmt.Errorf("edges[%d]: unknown trigger %q", j, edge.FromTrigger)
		case edge.FromElement != "" && !elements[edge.FromElement]:
			return fmt.Errorf("edges[%d]: unknown element %q", j, edge.FromElement)
		case !elements[edge.To]:
			return fmt.Errorf("edges[%d]: unknown target element %q", j, edge.To)
		}
	}

	return nil
}

func (e ElementConfig) model(scenarioID string) (*models.Element, error) {
	element := &models.Element{
		ID:         e.ID,
		ScenarioID: scenarioID,
		Type:       models.ElementType(e.Type),
	}

	if e.Options != nil {
		options, err := json.Marshal(e.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}

		element.Options = options
	}

	return element, nil
}

// Apply upserts every scenario with its triggers, elements and edges.
func (f *ScenarioFile) Apply(ctx context.Context, p persistence.Persistence) error {
	for _, scenario := range f.Scenarios {
		model := &models.Scenario{
			ID:       scenario.ID,
			Name:     scenario.Name,
			Enabled:  scenario.Enabled,
			Triggers: make([]*models.Trigger, 0, len(scenario.Triggers)),
		}

		for _, trigger := range scenario.Triggers {
			model.Triggers = append(model.Triggers, &models.Trigger{
				ID:         trigger.ID,
				ScenarioID: scenario.ID,
				EventCode:  trigger.EventCode,
			})
		}

		if err := p.ScenarioRepository().SaveScenario(ctx, model); err != nil {
			return fmt.Errorf("failed to save scenario %s: %w", scenario.ID, err)
		}

		for _, element := range scenario.Elements {
			elementModel, err := element.model(scenario.ID)
			if err != nil {
				return err
			}

			if err := p.ElementRepository().SaveElement(ctx, elementModel); err != nil {
				return fmt.Errorf("failed to save element %s: %w", element.ID, err)
			}
		}

		for _, edge := range scenario.Edges {
			err := p.ScenarioRepository().SaveEdge(ctx, &models.Edge{
				ScenarioID:      scenario.ID,
				SourceTriggerID: edge.FromTrigger,
				SourceElementID: edge.FromElement,
				TargetElementID: edge.To,
				Positive:        edge.Positive,
			})
			if err != nil {
				return fmt.Errorf("failed to save edge to %s: %w", edge.To, err)
			}
		}
	}

	return nil
}
