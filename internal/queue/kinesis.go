package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"golang.org/x/sync/errgroup"
)

// KinesisQueue implements Publisher and Consumer on a Kinesis stream. The
// partition key routes all records of one job to the same shard, which is
// what preserves per-job ordering.
type KinesisQueue struct {
	client       kinesisiface.KinesisAPI
	stream       string
	batchSize    int
	pollInterval time.Duration
	checkpoint   Checkpoint
}

func NewKinesisQueue(sess *session.Session, stream string, batchSize int, pollInterval time.Duration, checkpoint Checkpoint) *KinesisQueue {
	return &KinesisQueue{
		client:       kinesis.New(sess),
		stream:       stream,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		checkpoint:   checkpoint,
	}
}

func (q *KinesisQueue) Put(ctx context.Context, partitionKey string, data []byte) error {
	out, err := q.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(q.stream),
		PartitionKey: aws.String(partitionKey),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("put record to stream %s: %w", q.stream, err)
	}
	slog.Debug("record queued",
		"stream", q.stream,
		"partition_key", partitionKey,
		"shard", aws.StringValue(out.ShardId),
		"sequence", aws.StringValue(out.SequenceNumber),
	)
	return nil
}

// Consume runs one reader per shard. Each reader delivers GetRecords batches
// to the handler and checkpoints the last sequence number only after the
// handler succeeds, so a failed batch is re-read from the same position.
func (q *KinesisQueue) Consume(ctx context.Context, handle BatchHandler) error {
	shards, err := q.listShards(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, shardID := range shards {
		g.Go(func() error {
			return q.consumeShard(ctx, shardID, handle)
		})
	}
	return g.Wait()
}

func (q *KinesisQueue) listShards(ctx context.Context) ([]string, error) {
	var shards []string
	var next *string
	for {
		out, err := q.client.ListShardsWithContext(ctx, &kinesis.ListShardsInput{
			StreamName: streamNameUnlessToken(q.stream, next),
			NextToken:  next,
		})
		if err != nil {
			return nil, fmt.Errorf("list shards of stream %s: %w", q.stream, err)
		}
		for _, s := range out.Shards {
			shards = append(shards, aws.StringValue(s.ShardId))
		}
		if out.NextToken == nil {
			return shards, nil
		}
		next = out.NextToken
	}
}

// ListShards rejects requests that carry both a stream name and a pagination token.
func streamNameUnlessToken(stream string, token *string) *string {
	if token != nil {
		return nil
	}
	return aws.String(stream)
}

func (q *KinesisQueue) consumeShard(ctx context.Context, shardID string, handle BatchHandler) error {
	iterator, err := q.shardIterator(ctx, shardID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := q.client.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
			ShardIterator: iterator,
			Limit:         aws.Int64(int64(q.batchSize)),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("get records from shard %s: %w", shardID, err)
		}

		if len(out.Records) > 0 {
			records := make([]Record, 0, len(out.Records))
			for _, r := range out.Records {
				records = append(records, Record{
					PartitionKey: aws.StringValue(r.PartitionKey),
					ArrivalTime:  aws.TimeValue(r.ApproximateArrivalTimestamp),
					Data:         r.Data,
				})
			}

			if err := handle(ctx, records); err != nil {
				slog.Error("batch handling failed, re-reading from checkpoint",
					"shard", shardID, "records", len(records), "error", err)
				iterator, err = q.shardIterator(ctx, shardID)
				if err != nil {
					return err
				}
				// A batch that keeps failing must not hammer the API.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(q.pollInterval):
				}
				continue
			}

			lastSeq := aws.StringValue(out.Records[len(out.Records)-1].SequenceNumber)
			if err := q.checkpoint.Set(ctx, shardID, lastSeq); err != nil {
				return fmt.Errorf("checkpoint shard %s: %w", shardID, err)
			}
		}

		if out.NextShardIterator == nil {
			slog.Info("shard closed", "shard", shardID)
			return nil
		}
		iterator = out.NextShardIterator

		if len(out.Records) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.pollInterval):
			}
		}
	}
}

func (q *KinesisQueue) shardIterator(ctx context.Context, shardID string) (*string, error) {
	in := &kinesis.GetShardIteratorInput{
		StreamName: aws.String(q.stream),
		ShardId:    aws.String(shardID),
	}
	seq, err := q.checkpoint.Get(ctx, shardID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for shard %s: %w", shardID, err)
	}
	if seq == "" {
		in.ShardIteratorType = aws.String(kinesis.ShardIteratorTypeTrimHorizon)
	} else {
		in.ShardIteratorType = aws.String(kinesis.ShardIteratorTypeAfterSequenceNumber)
		in.StartingSequenceNumber = aws.String(seq)
	}

	out, err := q.client.GetShardIteratorWithContext(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("get iterator for shard %s: %w", shardID, err)
	}
	return out.ShardIterator, nil
}

var (
	_ Publisher = (*KinesisQueue)(nil)
	_ Consumer  = (*KinesisQueue)(nil)
)
