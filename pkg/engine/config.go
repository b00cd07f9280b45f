package engine

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrorPolicy decides what Run does when a poll fails.
type ErrorPolicy string

const (
	// ErrorPolicyHalt stops Run and returns the error.
	ErrorPolicyHalt ErrorPolicy = "halt"
	// ErrorPolicyRetry abandons the poll and tries again after SleepTime.
	ErrorPolicyRetry ErrorPolicy = "retry"
)

// Config tunes the polling loop and housekeeping.
type Config struct {
	SleepTime   time.Duration `validate:"gt=0"`
	BatchSize   int           `validate:"gt=0"`
	ErrorPolicy ErrorPolicy   `validate:"oneof=halt retry"`
	// Retention is how long continued finished jobs are kept.
	Retention             time.Duration `validate:"gte=0"`
	HousekeepingBatchSize int           `validate:"gt=0"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SleepTime:             5 * time.Second,
		BatchSize:             100,
		ErrorPolicy:           ErrorPolicyHalt,
		Retention:             30 * 24 * time.Hour,
		HousekeepingBatchSize: 1000,
	}
}

func (c Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}

	return nil
}
