// Package storage opens the configured store and upload backends.
package storage

import (
	"context"
	"fmt"

	"hydro360/internal/config"
	"hydro360/internal/db"
	"hydro360/internal/logging"
	"hydro360/internal/upload"
	"hydro360/repository"
	"hydro360/repository/mongostore"
)

// Open returns the store selected by cfg.Driver. SQLite databases are
// migrated on open.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		d, err := db.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logging.Info().Str("driver", config.DriverSQLite).Str("path", cfg.Path).Msg("store opened")
		return repository.NewSQLiteStore(d), nil
	case config.DriverMongo:
		store, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("driver", config.DriverMongo).Str("database", cfg.MongoDatabase).Msg("store opened")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenUploads returns the image store selected by cfg.Backend.
func OpenUploads(ctx context.Context, cfg config.UploadConfig) (upload.Store, error) {
	switch cfg.Backend {
	case config.UploadLocal, "":
		s, err := upload.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.UploadS3:
		s, err := upload.NewS3Store(ctx, upload.S3Config{
			Bucket:  cfg.S3Bucket,
			Region:  cfg.S3Region,
			Prefix:  cfg.S3Prefix,
			BaseURL: cfg.S3BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Backend)
	}
}
