// Package awsutil builds the shared AWS session used by the S3, SQS, Kinesis,
// DynamoDB, and SageMaker clients.
package awsutil

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/inferpipe/inferpipe/internal/config"
)

// NewSession creates a session from config. When no static credentials are
// configured the SDK's default chain (env, shared config, instance role)
// applies. A non-empty endpoint points every client at that endpoint, which is
// how local stacks are wired in development; path-style S3 addressing is
// forced in that case because virtual-host addressing does not resolve
// against local endpoints.
func NewSession(cfg config.AWSConfig) (*session.Session, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	return session.NewSession(awsCfg)
}
