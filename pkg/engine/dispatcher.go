package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/otelhelper"
	"github.com/dukex/scenarios/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrInvalidDispatch indicates a dispatch request without trigger code or user.
var ErrInvalidDispatch = errors.New("invalid dispatch")

// Dispatcher turns an external event into trigger jobs.
type Dispatcher struct {
	scenarios persistence.ScenarioRepository
	jobs      persistence.JobRepository
	tracer    trace.Tracer
	logger    *slog.Logger
}

func NewDispatcher(p persistence.Persistence, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		scenarios: p.ScenarioRepository(),
		jobs:      p.JobRepository(),
		tracer:    noop.NewTracerProvider().Tracer("dispatcher"),
		logger:    logger.With("module", "dispatcher"),
	}
}

// WithTracer replaces the no-op tracer.
func (d *Dispatcher) WithTracer(tracer trace.Tracer) *Dispatcher {
	d.tracer = tracer

	return d
}

// Dispatch creates one created trigger job for every trigger listening on triggerCode
// in every enabled scenario. userID always ends up in the job parameters, overriding
// any user_id in params. No match is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, triggerCode string, userID any, params map[string]any) error {
	if triggerCode == "" || userID == nil {
		return fmt.Errorf("%w: trigger code and user id are required", ErrInvalidDispatch)
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.dispatch",
		attribute.String(otelhelper.TriggerCodeKey, triggerCode))
	defer span.End()

	scenarios, err := d.scenarios.EnabledScenarios(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load enabled scenarios: %w", err)
	}

	parameters := models.NewParameters(userID, params)
	created := 0

	for _, scenario := range scenarios {
		for _, trigger := range scenario.TriggersFor(triggerCode) {
			job, err := d.jobs.AddTrigger(ctx, trigger.ID, parameters)
			if err != nil {
				otelhelper.SetError(span, err)

				return fmt.Errorf("failed to create job for trigger %s: %w", trigger.ID, err)
			}

			created++

			d.logger.DebugContext(ctx, "trigger job created",
				"job_id", job.ID, "scenario_id", scenario.ID, "trigger_id", trigger.ID)
		}
	}

	d.logger.InfoContext(ctx, "dispatched", "trigger_code", triggerCode, "jobs", created)

	return nil
}
