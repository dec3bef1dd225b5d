// Package storage persists records and uploaded-file metadata for the dev
// records service.
package storage

import (
	"context"
	"errors"
	"time"

	"rechnungen/internal/core"
)

var ErrNotFound = errors.New("record not found")

// FileInfo describes one uploaded invoice file.
type FileInfo struct {
	ObjectName  string
	Filename    string
	ContentType string
	Size        int64
	URL         string
	CreatedAt   time.Time
}

// Repository stores records per app. List returns records in insertion order.
type Repository interface {
	List(ctx context.Context, appID string) ([]core.Record, error)
	Get(ctx context.Context, appID, id string) (core.Record, error)
	Insert(ctx context.Context, appID string, r core.Record) error
	// Update applies patch and stamps UpdatedAt with at.
	Update(ctx context.Context, appID, id string, patch core.Patch, at time.Time) (core.Record, error)
	Delete(ctx context.Context, appID, id string) error
	SaveFile(ctx context.Context, f FileInfo) error
	Close() error
}

const timeLayout = time.RFC3339Nano
