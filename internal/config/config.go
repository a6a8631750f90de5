package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the InferPipe binaries. It is loaded and
// validated once at startup and passed to each component at construction.
type Config struct {
	Server    ServerConfig
	Registry  RegistryConfig
	Queue     QueueConfig
	Storage   StorageConfig
	Inference InferenceConfig
	Trigger   TriggerConfig
	AWS       AWSConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type RegistryConfig struct {
	Backend  string
	Database DatabaseConfig
	DynamoDB DynamoDBConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DynamoDBConfig struct {
	Table string
}

type QueueConfig struct {
	Backend   string
	BatchSize int
	Kinesis   KinesisConfig
	Redis     RedisQueueConfig
}

type KinesisConfig struct {
	Stream       string
	PollInterval time.Duration
}

type RedisQueueConfig struct {
	URL      string
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Bucket         string
	DataQueueURL   string
	ResultQueueURL string
}

type InferenceConfig struct {
	Backend       string
	ModelName     string
	InstanceType  string
	InstanceCount int
}

type TriggerConfig struct {
	Mode          string
	Granularity   string
	SweepInterval time.Duration
	CursorURL     string
}

type AWSConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

var validRegistryBackends = map[string]bool{
	"postgres": true,
	"dynamodb": true,
}

var validQueueBackends = map[string]bool{
	"kinesis": true,
	"redis":   true,
}

var validInferenceBackends = map[string]bool{
	"sagemaker": true,
	"mock":      true,
}

var validTriggerModes = map[string]bool{
	"reactive":  true,
	"scheduled": true,
}

var validGranularities = map[string]bool{
	"minute": true,
	"hour":   true,
	"day":    true,
	"month":  true,
	"year":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("INFERPIPE_PORT", 8080),
			Env:  envString("INFERPIPE_ENV", "development"),
		},
		Registry: RegistryConfig{
			Backend: envString("REGISTRY_BACKEND", "postgres"),
			Database: DatabaseConfig{
				URL:             os.Getenv("DATABASE_URL"),
				MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			DynamoDB: DynamoDBConfig{
				Table: os.Getenv("DYNAMODB_TABLE"),
			},
		},
		Queue: QueueConfig{
			Backend:   envString("QUEUE_BACKEND", "kinesis"),
			BatchSize: envInt("QUEUE_BATCH_SIZE", 100),
			Kinesis: KinesisConfig{
				Stream:       os.Getenv("KINESIS_STREAM"),
				PollInterval: envDuration("KINESIS_POLL_INTERVAL", time.Second),
			},
			Redis: RedisQueueConfig{
				URL:      os.Getenv("REDIS_URL"),
				Stream:   envString("REDIS_STREAM", "inferpipe:jobs"),
				Group:    envString("REDIS_GROUP", "windower"),
				Consumer: envString("REDIS_CONSUMER", hostnameOr("windower-1")),
			},
		},
		Storage: StorageConfig{
			Bucket:         os.Getenv("S3_BUCKET"),
			DataQueueURL:   os.Getenv("DATA_NOTIFY_QUEUE_URL"),
			ResultQueueURL: os.Getenv("RESULT_NOTIFY_QUEUE_URL"),
		},
		Inference: InferenceConfig{
			Backend:       envString("INFERENCE_BACKEND", "sagemaker"),
			ModelName:     os.Getenv("MODEL_NAME"),
			InstanceType:  envString("TRANSFORM_INSTANCE_TYPE", "ml.m4.xlarge"),
			InstanceCount: envInt("TRANSFORM_INSTANCE_COUNT", 1),
		},
		Trigger: TriggerConfig{
			Mode:          envString("TRIGGER_MODE", "reactive"),
			Granularity:   envString("SCHEDULE_RATE", "hour"),
			SweepInterval: envDuration("SWEEP_INTERVAL", time.Minute),
			CursorURL:     os.Getenv("CURSOR_REDIS_URL"),
		},
		AWS: AWSConfig{
			Region:    envString("AWS_REGION", "us-east-1"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:  os.Getenv("AWS_ENDPOINT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !validRegistryBackends[c.Registry.Backend] {
		return fmt.Errorf("REGISTRY_BACKEND must be one of postgres, dynamodb; got %q", c.Registry.Backend)
	}
	if c.Registry.Backend == "postgres" && c.Registry.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when REGISTRY_BACKEND is postgres")
	}
	if c.Registry.Backend == "dynamodb" && c.Registry.DynamoDB.Table == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required when REGISTRY_BACKEND is dynamodb")
	}

	if !validQueueBackends[c.Queue.Backend] {
		return fmt.Errorf("QUEUE_BACKEND must be one of kinesis, redis; got %q", c.Queue.Backend)
	}
	if c.Queue.Backend == "kinesis" && c.Queue.Kinesis.Stream == "" {
		return fmt.Errorf("KINESIS_STREAM is required when QUEUE_BACKEND is kinesis")
	}
	if c.Queue.Backend == "redis" && c.Queue.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when QUEUE_BACKEND is redis")
	}
	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive, got %d", c.Queue.BatchSize)
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}

	if !validInferenceBackends[c.Inference.Backend] {
		return fmt.Errorf("INFERENCE_BACKEND must be one of sagemaker, mock; got %q", c.Inference.Backend)
	}
	if c.Inference.InstanceCount < 1 {
		return fmt.Errorf("TRANSFORM_INSTANCE_COUNT must be positive, got %d", c.Inference.InstanceCount)
	}

	if !validTriggerModes[c.Trigger.Mode] {
		return fmt.Errorf("TRIGGER_MODE must be one of reactive, scheduled; got %q", c.Trigger.Mode)
	}
	if !validGranularities[c.Trigger.Granularity] {
		return fmt.Errorf("SCHEDULE_RATE must be one of minute, hour, day, month, year; got %q", c.Trigger.Granularity)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func hostnameOr(defaultVal string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return defaultVal
	}
	return h
}
