package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// SQSSource consumes object-created notifications fanned out from the object
// store to an SQS queue. Messages whose events are all handled successfully
// are deleted; anything else stays on the queue and redelivers after the
// visibility timeout.
type SQSSource struct {
	client   *sqs.SQS
	queueURL string
}

func NewSQSSource(sess *session.Session, queueURL string) *SQSSource {
	return &SQSSource{client: sqs.New(sess), queueURL: queueURL}
}

// s3EventBody is the subset of the S3 event notification format we consume.
type s3EventBody struct {
	Event   string `json:"Event"`
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

func (s *SQSSource) Listen(ctx context.Context, handle func(context.Context, Event) error) error {
	for {
		out, err := s.client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(20),
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receive from %s: %w", s.queueURL, err)
		}

		for _, msg := range out.Messages {
			if err := s.handleMessage(ctx, msg, handle); err != nil {
				slog.Error("notification handling failed, message will redeliver",
					"queue", s.queueURL, "error", err)
				continue
			}
			if _, err := s.client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				// Deletion failure means a duplicate delivery later; handlers
				// are idempotent so this is only worth a log line.
				slog.Warn("delete notification message failed", "queue", s.queueURL, "error", err)
			}
		}
	}
}

func (s *SQSSource) handleMessage(ctx context.Context, msg *sqs.Message, handle func(context.Context, Event) error) error {
	var body s3EventBody
	if err := json.Unmarshal([]byte(aws.StringValue(msg.Body)), &body); err != nil {
		return fmt.Errorf("decode notification body: %w", err)
	}
	if body.Event == "s3:TestEvent" {
		return nil
	}

	for _, rec := range body.Records {
		// Object keys arrive URL-encoded in S3 events.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return fmt.Errorf("unescape object key %q: %w", rec.S3.Object.Key, err)
		}
		ev := Event{Bucket: rec.S3.Bucket.Name, Key: key}
		if err := handle(ctx, ev); err != nil {
			return fmt.Errorf("handle s3://%s/%s: %w", ev.Bucket, ev.Key, err)
		}
	}
	return nil
}

var _ Source = (*SQSSource)(nil)
