package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryCheckpoint keeps progress in memory only. A restart replays the
// stream from the trim horizon; acceptable because every downstream write is
// an idempotent overwrite.
type MemoryCheckpoint struct {
	mu   sync.Mutex
	seqs map[string]string
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{seqs: make(map[string]string)}
}

func (c *MemoryCheckpoint) Get(_ context.Context, shardID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seqs[shardID], nil
}

func (c *MemoryCheckpoint) Set(_ context.Context, shardID, sequence string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seqs[shardID] = sequence
	return nil
}

// RedisCheckpoint persists per-shard progress in a Redis hash so a restarted
// consumer resumes where the previous one stopped.
type RedisCheckpoint struct {
	client *redis.Client
	key    string
}

func NewRedisCheckpoint(redisURL, stream string) (*RedisCheckpoint, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisCheckpoint{
		client: redis.NewClient(opts),
		key:    "inferpipe:checkpoint:" + stream,
	}, nil
}

func (c *RedisCheckpoint) Get(ctx context.Context, shardID string) (string, error) {
	seq, err := c.client.HGet(ctx, c.key, shardID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load checkpoint %s/%s: %w", c.key, shardID, err)
	}
	return seq, nil
}

func (c *RedisCheckpoint) Set(ctx context.Context, shardID, sequence string) error {
	if err := c.client.HSet(ctx, c.key, shardID, sequence).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s/%s: %w", c.key, shardID, err)
	}
	return nil
}

var (
	_ Checkpoint = (*MemoryCheckpoint)(nil)
	_ Checkpoint = (*RedisCheckpoint)(nil)
)
