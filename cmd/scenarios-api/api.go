// Package main provides the scenarios HTTP API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/dukex/scenarios/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dispatcher := engine.NewDispatcher(a.persistence, a.logger).WithTracer(a.tracer)
	jobs := services.NewJobs(a.persistence, clockwork.NewRealClock(), a.logger)

	handlers := web.NewAPIHandlers(dispatcher, jobs, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Scenarios API")
	})

	handlers.Register(app)

	return app
}

// Start serves on port until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.ShutdownWithContext(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error("Failed to shutdown API", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
