package backend

import (
	"context"

	"rechnungen/internal/blob"
	"rechnungen/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult is the storage pair a dev records service runs on.
type BackendResult struct {
	Repository storage.Repository
	Blobs      blob.Store
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds the settings of the dev records backend.
type Config struct {
	Store StoreType

	// SQLite specific
	SQLiteDBPath string

	// Local blob directory, used when GCSBucket is empty.
	BlobDir string
	// GCSBucket switches file uploads to Google Cloud Storage.
	GCSBucket string
	// FilesURL is the public base URL of locally stored files.
	FilesURL string
}

// StoreType selects the record repository.
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (st StoreType) String() string {
	return string(st)
}

func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}
