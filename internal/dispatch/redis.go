package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/pipeline"
)

// RedisClient is the part of the go-redis client used by the list dispatcher.
// Requeued messages wait in a sorted set scored by their due time.
type RedisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// DefaultRedisMaxAttempts matches the delivery budget of River jobs
const DefaultRedisMaxAttempts = 5

// DelayedKey is the sorted set holding requeued messages until they are due
func DelayedKey(key string) string { return key + ":delayed" }

// DeadKey is the list unresolved messages are parked on once their
// attempts are used up
func DeadKey(key string) string { return key + ":dead" }

// NewRedisClient connects to Redis. A failed ping is logged, not fatal, so the
// service can start before Redis does.
func NewRedisClient(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.NewLogger("redis").Warn("Failed to connect to Redis", "addr", addr, "error", err)
	}
	return rdb
}

// RedisDispatcher pushes retry messages onto a Redis list
type RedisDispatcher struct {
	client RedisClient
	key    string
	logger *slog.Logger
}

// NewRedisDispatcher creates a dispatcher writing to the list at key
func NewRedisDispatcher(client RedisClient, key string) *RedisDispatcher {
	return &RedisDispatcher{
		client: client,
		key:    key,
		logger: logger.NewLogger("redis-dispatcher"),
	}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, item pipeline.PipelineItem) error {
	msg := NewRetryMessage(item)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal retry message: %w", err)
	}
	if err := d.client.LPush(ctx, d.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push retry message: %w", err)
	}

	d.logger.Info("Queued webhook retry", "key", d.key, "pk", msg.Key.PartitionKey, "retries", msg.Retries)
	return nil
}

// BatchProcessor runs a batch of triggers through the pipeline
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, triggers []pipeline.Trigger) pipeline.BatchResult
}

// RedisConsumer pops retry messages from a Redis list and processes them.
// Unresolved messages are requeued with backoff and parked on the dead list
// after maxAttempts deliveries.
type RedisConsumer struct {
	client      RedisClient
	key         string
	processor   BatchProcessor
	timeout     time.Duration
	backoff     time.Duration
	backoffMax  time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewRedisConsumer creates a consumer for the list at key. Requeues wait
// backoff doubled per attempt, capped at backoffMax.
func NewRedisConsumer(client RedisClient, key string, processor BatchProcessor, backoff, backoffMax time.Duration) *RedisConsumer {
	return &RedisConsumer{
		client:      client,
		key:         key,
		processor:   processor,
		timeout:     5 * time.Second,
		backoff:     backoff,
		backoffMax:  backoffMax,
		maxAttempts: DefaultRedisMaxAttempts,
		now:         time.Now,
		logger:      logger.NewLogger("redis-consumer"),
	}
}

// Run consumes messages until ctx is cancelled
func (c *RedisConsumer) Run(ctx context.Context) error {
	c.logger.Info("Redis retry consumer started", "key", c.key)
	for {
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Redis retry consumer stopped", "key", c.key)
				return ctx.Err()
			}
			c.logger.Error("Redis dequeue error, retrying in 1s", "key", c.key, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll moves due requeued messages back onto the list, then waits for one
// message and processes it. It reports whether a message was received.
func (c *RedisConsumer) Poll(ctx context.Context) (bool, error) {
	if err := c.promoteDue(ctx); err != nil {
		return false, err
	}

	result, err := c.client.BRPop(ctx, c.timeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// result is [key, value]
	if len(result) < 2 {
		return false, nil
	}

	var msg RetryMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil || msg.Key.IsZero() {
		c.logger.Error("Dropping malformed retry message", "error", err, "raw", result[1])
		return true, nil
	}

	trigger := msg.Trigger(uuid.NewString())
	res := c.processor.ProcessBatch(ctx, []pipeline.Trigger{trigger})
	if res.Empty() {
		return true, nil
	}
	return true, c.requeue(ctx, msg)
}

// promoteDue pushes every delayed message whose due time has passed. ZRem
// decides which consumer wins a message, so each is promoted once.
func (c *RedisConsumer) promoteDue(ctx context.Context) error {
	due, err := c.client.ZRangeByScore(ctx, DelayedKey(c.key), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(c.now().UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed retry messages: %w", err)
	}

	for _, member := range due {
		removed, err := c.client.ZRem(ctx, DelayedKey(c.key), member).Result()
		if err != nil {
			return fmt.Errorf("failed to claim delayed retry message: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := c.client.LPush(ctx, c.key, member).Err(); err != nil {
			return fmt.Errorf("failed to promote delayed retry message: %w", err)
		}
	}
	return nil
}

func (c *RedisConsumer) requeue(ctx context.Context, msg RetryMessage) error {
	msg.Attempts++
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal retry message: %w", err)
	}

	if msg.Attempts >= c.maxAttempts {
		c.logger.Error("Retry message exhausted its attempts, parking it",
			"pk", msg.Key.PartitionKey,
			"attempts", msg.Attempts,
			"dead_key", DeadKey(c.key),
		)
		if err := c.client.LPush(ctx, DeadKey(c.key), data).Err(); err != nil {
			return fmt.Errorf("failed to park retry message: %w", err)
		}
		return nil
	}

	delay := Backoff(msg.Attempts-1, c.backoff, c.backoffMax)
	dueAt := c.now().Add(delay)
	c.logger.Warn("Retry message unresolved, requeueing",
		"pk", msg.Key.PartitionKey,
		"attempts", msg.Attempts,
		"due_at", dueAt,
	)
	err = c.client.ZAdd(ctx, DelayedKey(c.key), redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to requeue retry message: %w", err)
	}
	return nil
}

var _ pipeline.RetryDispatcher = (*RedisDispatcher)(nil)
