package file

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
)

// ElementRepository stores elements inside their scenario document.
type ElementRepository struct {
	store *store
}

// findElement locates a live element across every scenario document.
func (s *store) findElement(id string) (*scenarioDocument, int, error) {
	documents, err := s.documents()
	if err != nil {
		return nil, 0, err
	}

	for _, document := range documents {
		for i, element := range document.Elements {
			if element.ID == id && !element.Deleted() {
				return document, i, nil
			}
		}
	}

	return nil, 0, fmt.Errorf("%w: %s", persistence.ErrElementNotFound, id)
}

func (er *ElementRepository) ElementByID(_ context.Context, id string) (*models.Element, error) {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	document, index, err := er.store.findElement(id)
	if err != nil {
		return nil, err
	}

	return document.Elements[index], nil
}

func (er *ElementRepository) ElementsByScenario(_ context.Context, scenarioID string) ([]*models.Element, error) {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	document, err := er.store.loadDocument(scenarioID)
	if err != nil {
		return nil, err
	}

	elements := make([]*models.Element, 0, len(document.Elements))

	for _, element := range document.Elements {
		if !element.Deleted() {
			elements = append(elements, element)
		}
	}

	return elements, nil
}

// SaveElement inserts or replaces the element in its scenario document.
func (er *ElementRepository) SaveElement(_ context.Context, element *models.Element) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	document, err := er.store.loadDocument(element.ScenarioID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if element.CreatedAt.IsZero() {
		element.CreatedAt = now
	}

	element.UpdatedAt = now

	for i, existing := range document.Elements {
		if existing.ID == element.ID {
			document.Elements[i] = element

			return er.store.saveDocument(document)
		}
	}

	document.Elements = append(document.Elements, element)

	return er.store.saveDocument(document)
}

func (er *ElementRepository) SoftDelete(_ context.Context, id string) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	document, index, err := er.store.findElement(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	document.Elements[index].DeletedAt = &now
	document.Elements[index].UpdatedAt = now

	return er.store.saveDocument(document)
}
