package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inferpipe/inferpipe/internal/config"
)

// RedisQueue implements Publisher and Consumer on a Redis stream with a
// consumer group. Entries are acknowledged only after the handler succeeds,
// giving at-least-once delivery; the stream entry ID supplies the
// queue-assigned arrival timestamp.
type RedisQueue struct {
	client    *redis.Client
	stream    string
	group     string
	consumer  string
	batchSize int
}

func NewRedisQueue(cfg config.RedisQueueConfig, batchSize int) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisQueue{
		client:    redis.NewClient(opts),
		stream:    cfg.Stream,
		group:     cfg.Group,
		consumer:  cfg.Consumer,
		batchSize: batchSize,
	}, nil
}

func (q *RedisQueue) Close() error { return q.client.Close() }

func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

func (q *RedisQueue) Put(ctx context.Context, partitionKey string, data []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"key": partitionKey, "data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to stream %s: %w", q.stream, err)
	}
	return nil
}

// Consume reads batches for this consumer via the group. The first read picks
// up entries delivered to this consumer but never acknowledged (a previous
// crash mid-batch); after that it reads new entries.
func (q *RedisQueue) Consume(ctx context.Context, handle BatchHandler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	readID := "0"
	for {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, readID},
			Count:    int64(q.batchSize),
			Block:    time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			readID = ">"
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xreadgroup on stream %s: %w", q.stream, err)
		}

		var messages []redis.XMessage
		for _, s := range streams {
			messages = append(messages, s.Messages...)
		}
		if len(messages) == 0 {
			readID = ">"
			continue
		}

		records := make([]Record, 0, len(messages))
		ids := make([]string, 0, len(messages))
		for _, msg := range messages {
			records = append(records, Record{
				PartitionKey: stringValue(msg.Values, "key"),
				ArrivalTime:  entryTime(msg.ID),
				Data:         []byte(stringValue(msg.Values, "data")),
			})
			ids = append(ids, msg.ID)
		}

		if err := handle(ctx, records); err != nil {
			// Unacked entries stay pending; the next "0" read redelivers them.
			readID = "0"
			continue
		}

		if err := q.client.XAck(ctx, q.stream, q.group, ids...).Err(); err != nil {
			return fmt.Errorf("xack on stream %s: %w", q.stream, err)
		}
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", q.group, err)
	}
	return nil
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

// entryTime extracts the millisecond timestamp from a stream entry ID
// ("1710501234567-0").
func entryTime(id string) time.Time {
	msPart, _, _ := strings.Cut(id, "-")
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var (
	_ Publisher = (*RedisQueue)(nil)
	_ Consumer  = (*RedisQueue)(nil)
)
