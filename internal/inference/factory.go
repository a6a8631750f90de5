package inference

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/inferpipe/inferpipe/internal/config"
)

// NewRunner constructs the inference runner for the configured backend.
// Called once at trigger startup.
func NewRunner(cfg config.InferenceConfig, sess *session.Session) (Runner, error) {
	switch cfg.Backend {
	case "sagemaker":
		if cfg.ModelName == "" {
			return nil, fmt.Errorf("MODEL_NAME is required when INFERENCE_BACKEND is sagemaker")
		}
		return NewSageMakerRunner(sess, cfg), nil
	case "mock":
		return NewMockRunner(), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q: must be one of sagemaker, mock", cfg.Backend)
	}
}
