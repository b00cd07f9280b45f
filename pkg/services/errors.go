// Package services holds the job operations shared by the API and the workers.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a malformed request (400).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrJobNotReportable indicates a worker reported on a job that is not waiting for one (409).
	ErrJobNotReportable = errors.New("job is not waiting for a worker")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op    string // Operation name
	JobID string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newServiceError(op, jobID string, err error) *ServiceError {
	return &ServiceError{Op: op, JobID: jobID, Err: err}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrJobNotReportable)
}
