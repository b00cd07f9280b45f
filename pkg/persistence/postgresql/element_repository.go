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

// ElementRepository handles element-related database operations.
// Every read goes through scopeNotDeleted, so soft-deleted elements are never returned.
type ElementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewElementRepository creates a new element repository.
func NewElementRepository(db *sql.DB, logger *slog.Logger) *ElementRepository {
	return &ElementRepository{db: db, logger: logger}
}

func scopeNotDeleted(condition string) string {
	return `SELECT id, scenario_id, type, options, created_at, updated_at, deleted_at
		FROM scenario_elements
		WHERE deleted_at IS NULL AND ` + condition
}

// ElementByID returns a live element, or ErrElementNotFound.
func (er *ElementRepository) ElementByID(ctx context.Context, id string) (*models.Element, error) {
	row := er.db.QueryRowContext(ctx, scopeNotDeleted("id = $1"), id)

	element, err := er.scanElement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrElementNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan element: %w", err)
	}

	return element, nil
}

// ElementsByScenario returns the live elements of a scenario.
func (er *ElementRepository) ElementsByScenario(ctx context.Context, scenarioID string) ([]*models.Element, error) {
	rows, err := er.db.QueryContext(ctx, scopeNotDeleted("scenario_id = $1 ORDER BY created_at, id"), scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query elements: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	elements := make([]*models.Element, 0)

	for rows.Next() {
		element, err := er.scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan element: %w", err)
		}

		elements = append(elements, element)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating elements: %w", err)
	}

	return elements, nil
}

// SaveElement inserts or updates an element.
func (er *ElementRepository) SaveElement(ctx context.Context, element *models.Element) error {
	now := time.Now().UTC()
	if element.CreatedAt.IsZero() {
		element.CreatedAt = now
	}

	element.UpdatedAt = now

	options := []byte(element.Options)
	if len(options) == 0 {
		options = []byte("{}")
	}

	query := `
		INSERT INTO scenario_elements (id, scenario_id, type, options, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			scenario_id = EXCLUDED.scenario_id,
			type = EXCLUDED.type,
			options = EXCLUDED.options,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err := er.db.ExecContext(ctx, query,
		element.ID,
		element.ScenarioID,
		element.Type,
		options,
		element.CreatedAt,
		element.UpdatedAt,
		element.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save element: %w", err)
	}

	return nil
}

// SoftDelete marks the element as deleted. Deleting twice reports ErrElementNotFound.
func (er *ElementRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()

	result, err := er.db.ExecContext(ctx,
		"UPDATE scenario_elements SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		now, id)
	if err != nil {
		return fmt.Errorf("failed to delete element: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete element: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrElementNotFound, id)
	}

	return nil
}

func (er *ElementRepository) scanElement(scanner interface {
	Scan(dest ...any) error
}) (*models.Element, error) {
	var (
		element   models.Element
		options   []byte
		deletedAt sql.NullTime
	)

	err := scanner.Scan(
		&element.ID,
		&element.ScenarioID,
		&element.Type,
		&options,
		&element.CreatedAt,
		&element.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	element.Options = options
	element.DeletedAt = nullableTime(deletedAt)

	return &element, nil
}
