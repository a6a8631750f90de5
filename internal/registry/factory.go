package registry

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/inferpipe/inferpipe/internal/config"
)

// migrationsDir is where the postgres backend looks for its SQL migrations,
// relative to the working directory of the binary.
const migrationsDir = "migrations"

// New constructs the registry for the configured backend. The postgres
// backend connects and applies pending migrations; callers own Close.
func New(ctx context.Context, cfg config.RegistryConfig, sess *session.Session) (Registry, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresRegistry(pool), nil
	case "dynamodb":
		return NewDynamoRegistry(sess, cfg.DynamoDB.Table), nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q: must be one of postgres, dynamodb", cfg.Backend)
	}
}
