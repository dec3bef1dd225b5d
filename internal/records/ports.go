// Package records defines the ports of the hosted-records service and the
// wire documents it exchanges.
package records

import (
	"context"
	"io"

	"rechnungen/internal/core"
)

// Ports for the hosted-records service. Each call is exactly one round-trip.
type (
	Lister interface {
		// List returns the full collection in the order the service enumerates it.
		List(ctx context.Context) ([]core.Record, error)
	}

	Getter interface {
		Get(ctx context.Context, id string) (core.Record, error)
	}

	Creator interface {
		Create(ctx context.Context, fields core.Fields) (core.Record, error)
	}

	Updater interface {
		// Update sends only the keys touched by the patch.
		Update(ctx context.Context, id string, patch core.Patch) (core.Record, error)
	}

	Deleter interface {
		Delete(ctx context.Context, id string) error
	}

	Uploader interface {
		// UploadFile stores the file and returns a public URL for it.
		UploadFile(ctx context.Context, r io.Reader, filename string) (string, error)
	}

	// Client is the complete hosted-records surface.
	Client interface {
		Lister
		Getter
		Creator
		Updater
		Deleter
		Uploader
	}
)
