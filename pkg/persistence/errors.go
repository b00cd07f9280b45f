// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrJobNotFound indicates a job was not found by the given identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrElementNotFound indicates an element does not exist or was soft-deleted.
	ErrElementNotFound = errors.New("element not found")

	// ErrScenarioNotFound indicates a scenario was not found by the given identifier.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrTriggerNotFound indicates a trigger was not found by the given identifier.
	ErrTriggerNotFound = errors.New("trigger not found")
)

// JobError wraps job-related errors with additional context.
type JobError struct {
	Op    string // Operation being performed (e.g., "ScheduleJob", "Delete")
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s operation failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for job errors.
func (e *JobError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJobError creates a new job error with context.
func NewJobError(op, jobID string, err error) *JobError {
	return &JobError{
		Op:    op,
		JobID: jobID,
		Err:   err,
	}
}

// IsJobNotFound checks if an error indicates a job was not found.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// IsElementNotFound checks if an error indicates an element was not found.
func IsElementNotFound(err error) bool {
	return errors.Is(err, ErrElementNotFound)
}

// IsScenarioNotFound checks if an error indicates a scenario was not found.
func IsScenarioNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound)
}
