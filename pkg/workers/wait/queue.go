// Package wait finishes started wait jobs once their delay has elapsed.
package wait

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the sorted set holding pending wait jobs.
const DefaultQueueKey = "scenarios:wait:due"

// DelayQueue holds job ids until their due time.
type DelayQueue interface {
	// Push queues jobID for dueAt. Pushing a queued id keeps its first due time.
	Push(ctx context.Context, jobID string, dueAt time.Time) error
	// PopDue removes and returns every id due at or before now.
	PopDue(ctx context.Context, now time.Time) ([]string, error)
}

// RedisQueue is a DelayQueue on a Redis sorted set scored by due time in milliseconds.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}

	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, jobID string, dueAt time.Time) error {
	member := redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: jobID,
	}

	if err := q.client.ZAddNX(ctx, q.key, member).Err(); err != nil {
		return fmt.Errorf("failed to queue wait job %s: %w", jobID, err)
	}

	return nil
}

func (q *RedisQueue) PopDue(ctx context.Context, now time.Time) ([]string, error) {
	maxScore := strconv.FormatInt(now.UnixMilli(), 10)

	var due *redis.StringSliceCmd

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		due = pipe.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{Min: "-inf", Max: maxScore})
		pipe.ZRemRangeByScore(ctx, q.key, "-inf", maxScore)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop due wait jobs: %w", err)
	}

	return due.Val(), nil
}

// Len returns the number of queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
