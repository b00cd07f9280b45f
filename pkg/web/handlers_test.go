package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/scenarios/pkg/engine"
	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence"
	"github.com/dukex/scenarios/pkg/persistence/file"
	"github.com/dukex/scenarios/pkg/services"
	"github.com/dukex/scenarios/pkg/testutil"
	"github.com/dukex/scenarios/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handlers := web.NewAPIHandlers(
		engine.NewDispatcher(store, logger),
		services.NewJobs(store, clockwork.NewRealClock(), logger),
		store,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Register(app)

	testutil.SeedWelcome(t, store)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func createdJob(t *testing.T, store persistence.Persistence) *models.Job {
	t.Helper()

	jobs, err := store.JobRepository().UnprocessedJobs(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	return jobs[0]
}

func TestAPIHandlers_Dispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedJobs   int
	}{
		{
			name: "matching trigger",
			requestBody: map[string]any{
				"trigger_code": "signup",
				"user_id":      42,
				"params":       map[string]any{"plan": "pro", "user_id": 7},
			},
			expectedStatus: http.StatusAccepted,
			expectedJobs:   1,
		},
		{
			name:           "no matching trigger",
			requestBody:    map[string]any{"trigger_code": "purchase", "user_id": 42},
			expectedStatus: http.StatusAccepted,
			expectedJobs:   0,
		},
		{
			name:           "missing trigger code",
			requestBody:    map[string]any{"user_id": 42},
			expectedStatus: http.StatusBadRequest,
			expectedJobs:   0,
		},
		{
			name:           "missing user id",
			requestBody:    map[string]any{"trigger_code": "signup"},
			expectedStatus: http.StatusBadRequest,
			expectedJobs:   0,
		},
		{
			name:           "invalid JSON",
			requestBody:    `{"trigger_code": `,
			expectedStatus: http.StatusBadRequest,
			expectedJobs:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, store := setupTestApp(t)

			resp := doJSON(t, app, http.MethodPost, "/dispatch", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			jobs, err := store.JobRepository().UnprocessedJobs(t.Context(), 10)
			require.NoError(t, err)
			assert.Len(t, jobs, tt.expectedJobs)

			if tt.expectedJobs == 1 {
				assert.Equal(t, "welcome", jobs[0].ScenarioID)
				assert.EqualValues(t, 42, jobs[0].Parameters["user_id"])
				assert.Equal(t, "pro", jobs[0].Parameters["plan"])
			}
		})
	}
}

func TestAPIHandlers_GetJob(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/dispatch", map[string]any{"trigger_code": "signup", "user_id": "u-1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := createdJob(t, store)

	resp = doJSON(t, app, http.MethodGet, "/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, job.ID, body["id"])
	assert.Equal(t, "created", body["state"])
	assert.Equal(t, map[string]any{"trigger_id": "welcome-signup"}, body["origin"])

	resp = doJSON(t, app, http.MethodGet, "/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_FinishJob(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/dispatch", map[string]any{"trigger_code": "signup", "user_id": "u-1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := createdJob(t, store)

	// A created job is owned by the engine.
	resp = doJSON(t, app, http.MethodPost, "/jobs/"+job.ID+"/finish", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, store.JobRepository().ScheduleJob(t.Context(), job))

	resp = doJSON(t, app, http.MethodPost, "/jobs/"+job.ID+"/finish", map[string]any{
		"result": map[string]any{"positive": true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := store.JobRepository().JobByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFinished, stored.State)
	assert.NotNil(t, stored.FinishedAt)
	assert.Equal(t, true, stored.Result["positive"])

	resp = doJSON(t, app, http.MethodPost, "/jobs/"+job.ID+"/finish", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/jobs/missing/finish", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_FailJob(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/dispatch", map[string]any{"trigger_code": "signup", "user_id": "u-1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := createdJob(t, store)
	require.NoError(t, store.JobRepository().StartJob(t.Context(), job))

	resp = doJSON(t, app, http.MethodPost, "/jobs/"+job.ID+"/fail", map[string]any{"reason": "smtp unavailable"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := store.JobRepository().JobByID(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, stored.State)
	assert.Equal(t, "smtp unavailable", stored.Result["error"])
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"repository": "ok"}, body["checkers"])
}
