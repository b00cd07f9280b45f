// Package graph caches the scenario graph the engine walks.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
)

// Configuration is an in-memory successor index over the stored graph.
// It reloads only when the stored graph version moves.
type Configuration struct {
	source persistence.GraphRepository
	logger *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	version string
	// Edges keyed by source, in stored order.
	byTrigger map[string][]*models.Edge
	byElement map[string][]*models.Edge
}

func NewConfiguration(source persistence.GraphRepository, logger *slog.Logger) *Configuration {
	return &Configuration{
		source:    source,
		logger:    logger.With("module", "graph"),
		byTrigger: make(map[string][]*models.Edge),
		byElement: make(map[string][]*models.Edge),
	}
}

// Version returns the version of the cached snapshot, empty before the first load.
func (c *Configuration) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// ReloadIfOutdated replaces the snapshot when the stored version differs from the cached one.
func (c *Configuration) ReloadIfOutdated(ctx context.Context) error {
	version, err := c.source.GraphVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read graph version: %w", err)
	}

	c.mu.RLock()
	current := c.loaded && c.version == version
	c.mu.RUnlock()

	if current {
		return nil
	}

	graph, err := c.source.Graph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	byTrigger := make(map[string][]*models.Edge)
	byElement := make(map[string][]*models.Edge)

	for _, edge := range graph.Edges {
		switch {
		case edge.SourceTriggerID != "":
			byTrigger[edge.SourceTriggerID] = append(byTrigger[edge.SourceTriggerID], edge)
		case edge.SourceElementID != "":
			byElement[edge.SourceElementID] = append(byElement[edge.SourceElementID], edge)
		}
	}

	c.mu.Lock()
	c.loaded = true
	c.version = graph.Version
	c.byTrigger = byTrigger
	c.byElement = byElement
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "graph reloaded", "version", graph.Version, "edges", len(graph.Edges))

	return nil
}

// ElementsFollowingTrigger returns the elements entered when the trigger fires.
func (c *Configuration) ElementsFollowingTrigger(triggerID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return targets(c.byTrigger[triggerID], nil)
}

// ElementsFollowingElement returns the elements entered after the element finished with
// the given outcome. Unconditional edges are always taken.
func (c *Configuration) ElementsFollowingElement(elementID string, outcome *bool) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return targets(c.byElement[elementID], outcome)
}

func targets(edges []*models.Edge, outcome *bool) []string {
	seen := make(map[string]bool, len(edges))
	ids := make([]string, 0, len(edges))

	for _, edge := range edges {
		if !edge.Follows(outcome) || seen[edge.TargetElementID] {
			continue
		}

		seen[edge.TargetElementID] = true
		ids = append(ids, edge.TargetElementID)
	}

	return ids
}
