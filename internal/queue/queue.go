// Package queue provides the ingestion queue: an ordered, partitioned,
// at-least-once delivery log of submitted job payloads, keyed by job ID.
package queue

import (
	"context"
	"time"
)

// Record is one queued job payload as delivered to the windower. ArrivalTime
// is assigned by the queue when the record is accepted, not by the client.
type Record struct {
	PartitionKey string
	ArrivalTime  time.Time
	Data         []byte
}

// Publisher enqueues one payload under a partition key.
type Publisher interface {
	Put(ctx context.Context, partitionKey string, data []byte) error
}

// BatchHandler processes one delivery batch. Returning an error leaves the
// whole batch unacknowledged for redelivery; records of a batch are never
// split across handler invocations.
type BatchHandler func(ctx context.Context, records []Record) error

// Consumer delivers batches to a handler until the context ends. Within one
// partition, delivery preserves arrival order.
type Consumer interface {
	Consume(ctx context.Context, handle BatchHandler) error
}

// Checkpoint persists per-shard consumer progress so a restarted consumer
// resumes after the last acknowledged batch instead of replaying the stream.
type Checkpoint interface {
	Get(ctx context.Context, shardID string) (string, error)
	Set(ctx context.Context, shardID, sequence string) error
}
