// Package web provides the HTTP API: event dispatch and worker write-back.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Dispatcher creates trigger jobs for an external event.
type Dispatcher interface {
	Dispatch(ctx context.Context, triggerCode string, userID any, params map[string]any) error
}

type APIHandlers struct {
	dispatcher  Dispatcher
	jobs        *services.Jobs
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	dispatcher Dispatcher,
	jobs *services.Jobs,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		dispatcher:  dispatcher,
		jobs:        jobs,
		persistence: persistence,
		validator:   validator,
	}
}

// Dispatch accepts an external event. The jobs are processed by the next engine poll.
func (h *APIHandlers) Dispatch(c fiber.Ctx) error {
	var req DispatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.dispatcher.Dispatch(c.Context(), req.TriggerCode, req.UserID, req.Params)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":       "accepted",
		"trigger_code": req.TriggerCode,
	})
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	job, err := h.jobs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

func (h *APIHandlers) FinishJob(c fiber.Ctx) error {
	var req FinishJobRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	job, err := h.jobs.Finish(c.Context(), c.Params("id"), req.Result)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

func (h *APIHandlers) FailJob(c fiber.Ctx) error {
	var req FailJobRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.jobs.Fail(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Scenarios API is healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Scenarios API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Register mounts the routes on app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Post("/dispatch", h.Dispatch)

	jobs := app.Group("/jobs")
	jobs.Get("/:id", h.GetJob)
	jobs.Post("/:id/finish", h.FinishJob)
	jobs.Post("/:id/fail", h.FailJob)

	app.Get("/health", h.HealthCheck)
}
