package blob

import (
	"context"
	"fmt"

	"projecttracker/internal/config"
	"projecttracker/internal/infra/blob/fs"
	"projecttracker/internal/infra/blob/s3"
	"projecttracker/internal/infra/persistence/postgres"
	"projecttracker/internal/infra/persistence/sqlite"
)

// Open selects a Store implementation from cfg.Driver:
//
//	fs:       documents under cfg.FSRoot (default ./data)
//	memory:   process memory, lost on exit
//	s3:       objects in cfg.S3Bucket, optionally under cfg.S3Prefix
//	sqlite:   rows of the database at cfg.SQLitePath
//	postgres: JSONB rows reached through cfg.PostgresDSN
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	driver := Driver(cfg.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case DriverPostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN.Value())
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// NewMockS3ForTests returns an S3 store served by an in-process fake.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
