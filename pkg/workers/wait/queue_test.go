package wait_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/scenarios/pkg/workers/wait"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Redis test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   tcwait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisQueue(t *testing.T) {
	client := setupRedis(t)
	ctx := t.Context()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("pops only due jobs", func(t *testing.T) {
		queue := wait.NewRedisQueue(client, "test:due")

		require.NoError(t, queue.Push(ctx, "job-1", now.Add(time.Minute)))
		require.NoError(t, queue.Push(ctx, "job-2", now.Add(10*time.Minute)))

		due, err := queue.PopDue(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = queue.PopDue(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1"}, due)

		size, err := queue.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), size)

		due, err = queue.PopDue(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"job-2"}, due)
	})

	t.Run("push keeps the first due time", func(t *testing.T) {
		queue := wait.NewRedisQueue(client, "test:nx")

		require.NoError(t, queue.Push(ctx, "job-1", now.Add(time.Minute)))
		require.NoError(t, queue.Push(ctx, "job-1", now.Add(time.Hour)))

		due, err := queue.PopDue(ctx, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1"}, due)
	})

	t.Run("default key", func(t *testing.T) {
		queue := wait.NewRedisQueue(client, "")

		require.NoError(t, queue.Push(ctx, "job-1", now))

		size, err := client.ZCard(ctx, wait.DefaultQueueKey).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), size)
	})
}
