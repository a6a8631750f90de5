package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cursor persists the start time of the last successfully swept bucket so a
// bucket skipped by a failed tick is retried instead of lost. Without a
// persisted cursor each tick only ever looks at the immediately preceding
// period.
type Cursor interface {
	Get(ctx context.Context) (time.Time, bool, error)
	Set(ctx context.Context, t time.Time) error
}

// MemoryCursor keeps the cursor in memory; used in tests and when no cursor
// store is configured.
type MemoryCursor struct {
	mu  sync.Mutex
	t   time.Time
	set bool
}

func NewMemoryCursor() *MemoryCursor { return &MemoryCursor{} }

func (c *MemoryCursor) Get(context.Context) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t, c.set, nil
}

func (c *MemoryCursor) Set(_ context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t, c.set = t, true
	return nil
}

// RedisCursor persists the cursor in Redis, keyed per granularity so changing
// the schedule rate starts a fresh cursor.
type RedisCursor struct {
	client *redis.Client
	key    string
}

func NewRedisCursor(redisURL string, granularity Granularity) (*RedisCursor, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisCursor{
		client: redis.NewClient(opts),
		key:    "inferpipe:sweep:" + string(granularity),
	}, nil
}

func (c *RedisCursor) Get(ctx context.Context) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load sweep cursor: %w", err)
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse sweep cursor %q: %w", val, err)
	}
	return t, true, nil
}

func (c *RedisCursor) Set(ctx context.Context, t time.Time) error {
	if err := c.client.Set(ctx, c.key, t.Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("save sweep cursor: %w", err)
	}
	return nil
}

var (
	_ Cursor = (*MemoryCursor)(nil)
	_ Cursor = (*RedisCursor)(nil)
)
