package queue

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/inferpipe/inferpipe/internal/config"
)

// NewPublisher constructs the queue publisher for the configured backend.
// Called once at server startup.
func NewPublisher(cfg config.QueueConfig, sess *session.Session) (Publisher, error) {
	switch cfg.Backend {
	case "kinesis":
		return NewKinesisQueue(sess, cfg.Kinesis.Stream, cfg.BatchSize, cfg.Kinesis.PollInterval, NewMemoryCheckpoint()), nil
	case "redis":
		return NewRedisQueue(cfg.Redis, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown queue backend %q: must be one of kinesis, redis", cfg.Backend)
	}
}

// NewConsumer constructs the queue consumer for the configured backend. The
// Kinesis consumer checkpoints into Redis when a Redis URL is configured and
// falls back to an in-memory checkpoint otherwise.
func NewConsumer(cfg config.QueueConfig, sess *session.Session) (Consumer, error) {
	switch cfg.Backend {
	case "kinesis":
		var checkpoint Checkpoint = NewMemoryCheckpoint()
		if cfg.Redis.URL != "" {
			rc, err := NewRedisCheckpoint(cfg.Redis.URL, cfg.Kinesis.Stream)
			if err != nil {
				return nil, err
			}
			checkpoint = rc
		}
		return NewKinesisQueue(sess, cfg.Kinesis.Stream, cfg.BatchSize, cfg.Kinesis.PollInterval, checkpoint), nil
	case "redis":
		return NewRedisQueue(cfg.Redis, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown queue backend %q: must be one of kinesis, redis", cfg.Backend)
	}
}
