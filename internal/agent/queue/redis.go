package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is the offline action queue, stored as a Redis list with the
// oldest action at the head.
type RedisQueue struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisQueue connects with opts and checks the connection.
func NewRedisQueue(ctx context.Context, opts *redis.Options, key string) (*RedisQueue, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisQueueWithClient(client, key), nil
}

// NewRedisQueueWithClient creates a queue from an existing Redis client
func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		now:    time.Now,
	}
}

// Enqueue validates action, stamps it and appends it to the tail.
func (q *RedisQueue) Enqueue(ctx context.Context, action offline.QueuedAction) (offline.QueuedAction, error) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.QueuedAt.IsZero() {
		action.QueuedAt = q.now().UTC()
	}
	if err := action.Validate(); err != nil {
		return offline.QueuedAction{}, err
	}

	payload, err := json.Marshal(action)
	if err != nil {
		return offline.QueuedAction{}, fmt.Errorf("marshal action: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return offline.QueuedAction{}, fmt.Errorf("enqueue action: %w", err)
	}
	return action, nil
}

// Size returns the number of queued actions.
func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return int(n), nil
}

// Peek returns up to n actions from the head without removing them.
func (q *RedisQueue) Peek(ctx context.Context, n int) ([]offline.QueuedAction, error) {
	if n <= 0 {
		return []offline.QueuedAction{}, nil
	}

	raw, err := q.client.LRange(ctx, q.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("peek queue: %w", err)
	}

	actions := make([]offline.QueuedAction, 0, len(raw))
	for _, item := range raw {
		var a offline.QueuedAction
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("decode queued action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// Drop removes the n oldest actions. Actions appended concurrently at the
// tail are kept.
func (q *RedisQueue) Drop(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if err := q.client.LTrim(ctx, q.key, int64(n), -1).Err(); err != nil {
		return fmt.Errorf("drop queued actions: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping checks if Redis is reachable
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
