package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
)

// ScenarioRepository handles scenario, trigger and edge database operations.
// It also serves the graph snapshot used by the engine.
type ScenarioRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScenarioRepository creates a new scenario repository.
func NewScenarioRepository(db *sql.DB, logger *slog.Logger) *ScenarioRepository {
	return &ScenarioRepository{db: db, logger: logger}
}

// EnabledScenarios returns every enabled, non-deleted scenario with its triggers.
func (sr *ScenarioRepository) EnabledScenarios(ctx context.Context) ([]*models.Scenario, error) {
	query := `
		SELECT s.id, s.name, s.enabled, s.created_at, s.updated_at,
			t.id, t.event_code
		FROM scenarios s
		LEFT JOIN scenario_triggers t ON t.scenario_id = s.id
		WHERE s.enabled AND s.deleted_at IS NULL
		ORDER BY s.created_at, s.id, t.created_at, t.id
	`

	rows, err := sr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			sr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	scenarios := make([]*models.Scenario, 0)

	var current *models.Scenario

	for rows.Next() {
		var (
			scenario             models.Scenario
			triggerID, eventCode sql.NullString
		)

		err := rows.Scan(
			&scenario.ID,
			&scenario.Name,
			&scenario.Enabled,
			&scenario.CreatedAt,
			&scenario.UpdatedAt,
			&triggerID,
			&eventCode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}

		if current == nil || current.ID != scenario.ID {
			scenario.Triggers = make([]*models.Trigger, 0)
			current = &scenario
			scenarios = append(scenarios, current)
		}

		if triggerID.Valid {
			current.Triggers = append(current.Triggers, &models.Trigger{
				ID:         triggerID.String,
				ScenarioID: current.ID,
				EventCode:  eventCode.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	return scenarios, nil
}

// ScenarioByID returns a non-deleted scenario with its triggers.
func (sr *ScenarioRepository) ScenarioByID(ctx context.Context, id string) (*models.Scenario, error) {
	var scenario models.Scenario

	err := sr.db.QueryRowContext(ctx,
		"SELECT id, name, enabled, created_at, updated_at FROM scenarios WHERE id = $1 AND deleted_at IS NULL", id,
	).Scan(&scenario.ID, &scenario.Name, &scenario.Enabled, &scenario.CreatedAt, &scenario.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrScenarioNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan scenario: %w", err)
	}

	rows, err := sr.db.QueryContext(ctx,
		"SELECT id, event_code FROM scenario_triggers WHERE scenario_id = $1 ORDER BY created_at, id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			sr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	scenario.Triggers = make([]*models.Trigger, 0)

	for rows.Next() {
		trigger := &models.Trigger{ScenarioID: id}
		if err := rows.Scan(&trigger.ID, &trigger.EventCode); err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}

		scenario.Triggers = append(scenario.Triggers, trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating triggers: %w", err)
	}

	return &scenario, nil
}

// SaveScenario upserts a scenario and its triggers in one transaction.
func (sr *ScenarioRepository) SaveScenario(ctx context.Context, scenario *models.Scenario) error {
	now := time.Now().UTC()
	if scenario.CreatedAt.IsZero() {
		scenario.CreatedAt = now
	}

	scenario.UpdatedAt = now

	transaction, err := sr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = transaction.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, enabled, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`, scenario.ID, scenario.Name, scenario.Enabled, scenario.CreatedAt, scenario.UpdatedAt, scenario.DeletedAt)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to save scenario: %w", err)
	}

	for _, trigger := range scenario.Triggers {
		_, err = transaction.ExecContext(ctx, `
			INSERT INTO scenario_triggers (id, scenario_id, event_code, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (id) DO UPDATE SET
				event_code = EXCLUDED.event_code,
				updated_at = EXCLUDED.updated_at
		`, trigger.ID, scenario.ID, trigger.EventCode, now)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit scenario: %w", err)
	}

	return nil
}

// SaveEdge inserts an edge.
func (sr *ScenarioRepository) SaveEdge(ctx context.Context, edge *models.Edge) error {
	_, err := sr.db.ExecContext(ctx, `
		INSERT INTO scenario_edges (scenario_id, source_trigger_id, source_element_id, target_element_id, positive)
		SELECT $1, NULLIF($2, ''), NULLIF($3, ''), $4, $5::BOOLEAN
		WHERE NOT EXISTS (
			SELECT 1 FROM scenario_edges
			WHERE scenario_id = $1
				AND source_trigger_id IS NOT DISTINCT FROM NULLIF($2, '')
				AND source_element_id IS NOT DISTINCT FROM NULLIF($3, '')
				AND target_element_id = $4
				AND positive IS NOT DISTINCT FROM $5::BOOLEAN
		)
	`, edge.ScenarioID, edge.SourceTriggerID, edge.SourceElementID, edge.TargetElementID, edge.Positive)
	if err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}

	return nil
}

// GraphVersion changes whenever a scenario, trigger or element is updated or an edge
// is added or removed.
func (sr *ScenarioRepository) GraphVersion(ctx context.Context) (string, error) {
	query := `
		SELECT CONCAT_WS(':',
			(SELECT COALESCE(EXTRACT(EPOCH FROM MAX(updated_at)), 0) FROM scenarios),
			(SELECT COALESCE(EXTRACT(EPOCH FROM MAX(updated_at)), 0) FROM scenario_triggers),
			(SELECT COALESCE(EXTRACT(EPOCH FROM MAX(updated_at)), 0) FROM scenario_elements),
			(SELECT COALESCE(MAX(id), 0) FROM scenario_edges),
			(SELECT COUNT(*) FROM scenario_edges)
		)
	`

	var version string

	err := sr.db.QueryRowContext(ctx, query).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to query graph version: %w", err)
	}

	return version, nil
}

// Graph returns the live edges of enabled scenarios. Edges touching a soft-deleted
// element are left out.
func (sr *ScenarioRepository) Graph(ctx context.Context) (*models.Graph, error) {
	version, err := sr.GraphVersion(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT e.scenario_id, e.source_trigger_id, e.source_element_id, e.target_element_id, e.positive
		FROM scenario_edges e
		JOIN scenarios s ON s.id = e.scenario_id AND s.enabled AND s.deleted_at IS NULL
		JOIN scenario_elements target ON target.id = e.target_element_id AND target.deleted_at IS NULL
		LEFT JOIN scenario_elements source ON source.id = e.source_element_id
		WHERE e.source_element_id IS NULL OR source.deleted_at IS NULL
		ORDER BY e.id
	`

	rows, err := sr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			sr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	graph := &models.Graph{Version: version, Edges: make([]*models.Edge, 0)}

	for rows.Next() {
		var (
			edge                         models.Edge
			sourceTrigger, sourceElement sql.NullString
			positive                     sql.NullBool
		)

		err := rows.Scan(&edge.ScenarioID, &sourceTrigger, &sourceElement, &edge.TargetElementID, &positive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edge.SourceTriggerID = sourceTrigger.String
		edge.SourceElementID = sourceElement.String

		if positive.Valid {
			edge.Positive = &positive.Bool
		}

		graph.Edges = append(graph.Edges, &edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return graph, nil
}
