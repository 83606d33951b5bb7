package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a fixed-window counter shared by every api-service instance.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisCounter)

func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCounter) { c.prefix = strings.Trim(prefix, ":") }
}

func NewRedisCounter(rdb *redis.Client, opts ...RedisOption) *RedisCounter {
	c := &RedisCounter{
		rdb:    rdb,
		prefix: "ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check increments the counter for the current window and compares it to limit.
func (c *RedisCounter) Check(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if window < time.Second {
		return false, fmt.Errorf("rate limit window must be at least 1s, got %s", window)
	}

	key := c.key(identifier, window)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}

func (c *RedisCounter) key(identifier string, window time.Duration) string {
	secs := int64(window / time.Second)
	start := c.now().Unix() / secs * secs
	return c.prefix + ":" + identifier + ":" + strconv.FormatInt(start, 10)
}
