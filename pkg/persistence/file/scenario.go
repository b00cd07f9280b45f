package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
)

// scenarioDocument is the on-disk layout of a scenario.
type scenarioDocument struct {
	Scenario *models.Scenario  `json:"scenario"`
	Elements []*models.Element `json:"elements"`
	Edges    []*models.Edge    `json:"edges"`
	// Revision grows on every write and feeds the graph version.
	Revision int64 `json:"revision"`
}

// ScenarioRepository stores scenario documents and serves the graph snapshot.
type ScenarioRepository struct {
	store *store
}

func (s *store) loadDocument(id string) (*scenarioDocument, error) {
	var document scenarioDocument

	err := s.read(scenariosDir, id, &document)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrScenarioNotFound, id)
		}

		return nil, err
	}

	return &document, nil
}

func (s *store) saveDocument(document *scenarioDocument) error {
	document.Revision++

	return s.write(scenariosDir, document.Scenario.ID, document)
}

func (s *store) documents() ([]*scenarioDocument, error) {
	ids, err := s.ids(scenariosDir)
	if err != nil {
		return nil, err
	}

	documents := make([]*scenarioDocument, 0, len(ids))

	for _, id := range ids {
		document, err := s.loadDocument(id)
		if err != nil {
			return nil, err
		}

		documents = append(documents, document)
	}

	sort.Slice(documents, func(i, j int) bool {
		a, b := documents[i].Scenario, documents[j].Scenario
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})

	return documents, nil
}

func live(scenario *models.Scenario) bool {
	return scenario.Enabled && scenario.DeletedAt == nil
}

// EnabledScenarios returns every enabled, non-deleted scenario with its triggers.
func (sr *ScenarioRepository) EnabledScenarios(_ context.Context) ([]*models.Scenario, error) {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	documents, err := sr.store.documents()
	if err != nil {
		return nil, err
	}

	scenarios := make([]*models.Scenario, 0)

	for _, document := range documents {
		if live(document.Scenario) {
			scenarios = append(scenarios, document.Scenario)
		}
	}

	return scenarios, nil
}

// ScenarioByID returns a non-deleted scenario with its triggers.
func (sr *ScenarioRepository) ScenarioByID(_ context.Context, id string) (*models.Scenario, error) {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	document, err := sr.store.loadDocument(id)
	if err != nil {
		return nil, err
	}

	if document.Scenario.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", persistence.ErrScenarioNotFound, id)
	}

	return document.Scenario, nil
}

// SaveScenario creates the scenario document or replaces the scenario and its triggers.
func (sr *ScenarioRepository) SaveScenario(_ context.Context, scenario *models.Scenario) error {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	document, err := sr.store.loadDocument(scenario.ID)
	if err != nil && !errors.Is(err, persistence.ErrScenarioNotFound) {
		return err
	}

	if document == nil {
		document = &scenarioDocument{
			Elements: make([]*models.Element, 0),
			Edges:    make([]*models.Edge, 0),
		}
	}

	now := time.Now().UTC()
	if scenario.CreatedAt.IsZero() {
		scenario.CreatedAt = now
	}

	scenario.UpdatedAt = now

	for _, trigger := range scenario.Triggers {
		trigger.ScenarioID = scenario.ID
	}

	document.Scenario = scenario

	return sr.store.saveDocument(document)
}

// SaveEdge appends an edge to its scenario document unless an identical one exists.
func (sr *ScenarioRepository) SaveEdge(_ context.Context, edge *models.Edge) error {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	if (edge.SourceTriggerID == "") == (edge.SourceElementID == "") {
		return fmt.Errorf("edge to %s needs exactly one source", edge.TargetElementID)
	}

	document, err := sr.store.loadDocument(edge.ScenarioID)
	if err != nil {
		return err
	}

	for _, existing := range document.Edges {
		if sameEdge(existing, edge) {
			return nil
		}
	}

	document.Edges = append(document.Edges, edge)

	return sr.store.saveDocument(document)
}

func sameEdge(a, b *models.Edge) bool {
	return a.SourceTriggerID == b.SourceTriggerID &&
		a.SourceElementID == b.SourceElementID &&
		a.TargetElementID == b.TargetElementID &&
		(a.Positive == nil) == (b.Positive == nil) &&
		(a.Positive == nil || *a.Positive == *b.Positive)
}

// GraphVersion combines every document revision with the document count.
func (sr *ScenarioRepository) GraphVersion(_ context.Context) (string, error) {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	documents, err := sr.store.documents()
	if err != nil {
		return "", err
	}

	return graphVersion(documents), nil
}

func graphVersion(documents []*scenarioDocument) string {
	var revisions int64
	for _, document := range documents {
		revisions += document.Revision
	}

	return strconv.FormatInt(revisions, 10) + ":" + strconv.Itoa(len(documents))
}

// Graph returns the live edges of enabled scenarios.
func (sr *ScenarioRepository) Graph(_ context.Context) (*models.Graph, error) {
	sr.store.mu.Lock()
	defer sr.store.mu.Unlock()

	documents, err := sr.store.documents()
	if err != nil {
		return nil, err
	}

	graph := &models.Graph{Version: graphVersion(documents), Edges: make([]*models.Edge, 0)}

	for _, document := range documents {
		if !live(document.Scenario) {
			continue
		}

		deleted := make(map[string]bool, len(document.Elements))
		for _, element := range document.Elements {
			deleted[element.ID] = element.Deleted()
		}

		for _, edge := range document.Edges {
			if deleted[edge.TargetElementID] || (edge.SourceElementID != "" && deleted[edge.SourceElementID]) {
				continue
			}

			graph.Edges = append(graph.Edges, edge)
		}
	}

	return graph, nil
}
