package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemaker"

	"github.com/inferpipe/inferpipe/internal/config"
)

// Data-processing contract matching the line codec: strip the job ID and
// arrival-time columns before the model sees a record, then join the model's
// last output column back onto those two columns.
const (
	inputFilter  = "$[2:]"
	outputFilter = "$[0,1,-1]"
)

// SageMakerRunner implements Runner using SageMaker batch transform jobs.
type SageMakerRunner struct {
	client        *sagemaker.SageMaker
	instanceType  string
	instanceCount int64
}

func NewSageMakerRunner(sess *session.Session, cfg config.InferenceConfig) *SageMakerRunner {
	return &SageMakerRunner{
		client:        sagemaker.New(sess),
		instanceType:  cfg.InstanceType,
		instanceCount: int64(cfg.InstanceCount),
	}
}

func (r *SageMakerRunner) Submit(ctx context.Context, run Run) error {
	req := &sagemaker.CreateTransformJobInput{
		TransformJobName: aws.String(run.JobName),
		ModelName:        aws.String(run.ModelName),
		BatchStrategy:    aws.String(sagemaker.BatchStrategyMultiRecord),
		DataProcessing: &sagemaker.DataProcessing{
			InputFilter:  aws.String(inputFilter),
			JoinSource:   aws.String(sagemaker.JoinSourceInput),
			OutputFilter: aws.String(outputFilter),
		},
		TransformInput: &sagemaker.TransformInput{
			DataSource: &sagemaker.TransformDataSource{
				S3DataSource: &sagemaker.TransformS3DataSource{
					S3DataType: aws.String(sagemaker.S3DataTypeS3prefix),
					S3Uri:      aws.String(run.InputLocation),
				},
			},
			ContentType:     aws.String("text/csv"),
			SplitType:       aws.String(sagemaker.SplitTypeLine),
			CompressionType: aws.String(sagemaker.CompressionTypeNone),
		},
		TransformOutput: &sagemaker.TransformOutput{
			S3OutputPath: aws.String(run.OutputLocation),
			Accept:       aws.String("text/csv"),
			AssembleWith: aws.String(sagemaker.AssemblyTypeLine),
		},
		TransformResources: &sagemaker.TransformResources{
			InstanceType:  aws.String(r.instanceType),
			InstanceCount: aws.Int64(r.instanceCount),
		},
	}

	out, err := r.client.CreateTransformJobWithContext(ctx, req)
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == sagemaker.ErrCodeResourceInUse {
			return fmt.Errorf("transform job %s: %w", run.JobName, ErrAlreadyExists)
		}
		return fmt.Errorf("create transform job %s: %w", run.JobName, err)
	}

	slog.Info("transform job submitted",
		"job_name", run.JobName,
		"model", run.ModelName,
		"input", run.InputLocation,
		"output", run.OutputLocation,
		"arn", aws.StringValue(out.TransformJobArn),
	)
	return nil
}

var _ Runner = (*SageMakerRunner)(nil)
