package backend

import (
	"context"
	"errors"
	"fmt"

	"rechnungen/internal/blob"
	"rechnungen/internal/blob/gcs"
	"rechnungen/internal/blob/local"
	"rechnungen/internal/log"
	"rechnungen/internal/storage"
	"rechnungen/internal/storage/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentStorage)}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var repo storage.Repository
	switch config.Store {
	case SQLiteStore:
		sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		repo = sqliteRepo
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
	case MemoryStore:
		repo = memory.New()
		f.logger.Info("Initialized memory store")
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Store)
	}

	blobs, closeBlobs, err := f.createBlobStore(ctx, config)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return &BackendResult{
		Repository: repo,
		Blobs:      blobs,
		Cleanup: func() error {
			return errors.Join(closeBlobs(), repo.Close())
		},
	}, nil
}

func (f *DefaultFactory) createBlobStore(ctx context.Context, config Config) (blob.Store, func() error, error) {
	if config.GCSBucket != "" {
		store, err := gcs.New(ctx, config.GCSBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize GCS store: %w", err)
		}
		f.logger.Info("Storing uploads in GCS", "bucket", config.GCSBucket)
		return store, store.Close, nil
	}

	store, err := local.New(config.BlobDir, config.FilesURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize local file store: %w", err)
	}
	f.logger.Info("Storing uploads on disk", "dir", config.BlobDir)
	return store, func() error { return nil }, nil
}
