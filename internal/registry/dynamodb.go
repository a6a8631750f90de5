package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/inferpipe/inferpipe/pkg/models"
)

// batchWriteMax is the DynamoDB BatchWriteItem request limit.
const batchWriteMax = 25

// Unprocessed items signal throttling; re-submission backs off doubling from
// the base up to the cap.
const (
	batchRetryBase = 50 * time.Millisecond
	batchRetryCap  = time.Second
)

// DynamoRegistry implements the Registry interface on a DynamoDB table keyed
// by jobId. Timestamps stay numeric strings; the table has no native float
// type to lose precision to.
type DynamoRegistry struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

func NewDynamoRegistry(sess *session.Session, table string) *DynamoRegistry {
	return &DynamoRegistry{client: dynamodb.New(sess), table: table}
}

// jobItem is the table representation of models.Job. Empty attributes are
// omitted rather than stored as empty strings.
type jobItem struct {
	JobID         string `dynamodbav:"jobId"`
	Status        string `dynamodbav:"status"`
	ArrivalTime   string `dynamodbav:"arrivalTime,omitempty"`
	ProcessedTime string `dynamodbav:"processedTime,omitempty"`
	Result        string `dynamodbav:"result,omitempty"`
}

func itemFromJob(job *models.Job) jobItem {
	return jobItem{
		JobID:         job.JobID,
		Status:        job.Status,
		ArrivalTime:   string(job.ArrivalTime),
		ProcessedTime: string(job.ProcessedTime),
		Result:        job.Result,
	}
}

func (i jobItem) job() *models.Job {
	return &models.Job{
		JobID:         i.JobID,
		Status:        i.Status,
		ArrivalTime:   models.Numeric(i.ArrivalTime),
		ProcessedTime: models.Numeric(i.ProcessedTime),
		Result:        i.Result,
	}
}

func (r *DynamoRegistry) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}
	return nil
}

func (r *DynamoRegistry) Close() {}

func (r *DynamoRegistry) Put(ctx context.Context, job *models.Job) error {
	av, err := dynamodbattribute.MarshalMap(itemFromJob(job))
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	}
	// Writing Queued must not demote a job that was already reconciled.
	if job.Status == models.JobStatusQueued {
		in.ConditionExpression = aws.String("attribute_not_exists(#s) OR #s <> :processed")
		in.ExpressionAttributeNames = map[string]*string{"#s": aws.String("status")}
		in.ExpressionAttributeValues = map[string]*dynamodb.AttributeValue{
			":processed": {S: aws.String(models.JobStatusProcessed)},
		}
	}

	if _, err := r.client.PutItemWithContext(ctx, in); err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return nil
		}
		return fmt.Errorf("put job %s: %w", job.JobID, err)
	}
	return nil
}

func (r *DynamoRegistry) Get(ctx context.Context, jobID string) (*models.Job, error) {
	out, err := r.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]*dynamodb.AttributeValue{
			"jobId": {S: aws.String(jobID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item jobItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return item.job(), nil
}

// BatchPut writes jobs in chunks of the BatchWriteItem limit, retrying any
// unprocessed items the service returns with exponential backoff.
func (r *DynamoRegistry) BatchPut(ctx context.Context, jobs []*models.Job) error {
	for start := 0; start < len(jobs); start += batchWriteMax {
		end := min(start+batchWriteMax, len(jobs))

		writes := make([]*dynamodb.WriteRequest, 0, end-start)
		for _, job := range jobs[start:end] {
			av, err := dynamodbattribute.MarshalMap(itemFromJob(job))
			if err != nil {
				return fmt.Errorf("marshal job %s: %w", job.JobID, err)
			}
			writes = append(writes, &dynamodb.WriteRequest{
				PutRequest: &dynamodb.PutRequest{Item: av},
			})
		}

		backoff := batchRetryBase
		pending := map[string][]*dynamodb.WriteRequest{r.table: writes}
		for len(pending[r.table]) > 0 {
			out, err := r.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return fmt.Errorf("batch put %d jobs: %w", end-start, err)
			}
			pending = out.UnprocessedItems
			if len(pending[r.table]) == 0 {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, batchRetryCap)
		}
	}
	return nil
}

var _ Registry = (*DynamoRegistry)(nil)
