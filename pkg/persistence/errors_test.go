package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		jobErr := persistence.NewJobError("ScheduleJob", "job-123", persistence.ErrJobNotFound)

		assert.True(t, persistence.IsJobNotFound(jobErr))
		assert.False(t, persistence.IsElementNotFound(jobErr))
		assert.True(t, errors.Is(jobErr, persistence.ErrJobNotFound))
	})

	t.Run("wrapped sentinel errors are detected", func(t *testing.T) {
		err := fmt.Errorf("loading element: %w", persistence.ErrElementNotFound)

		assert.True(t, persistence.IsElementNotFound(err))
		assert.False(t, persistence.IsScenarioNotFound(err))
	})

	t.Run("job error contains context", func(t *testing.T) {
		err := persistence.NewJobError("Delete", "job-123", persistence.ErrJobNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "job-123")
		assert.Contains(t, err.Error(), "job not found")
	})
}
