package sheets

import (
	"context"

	"rechnungen/internal/core"
)

// Ports for outbound adapters.
type (
	// RowWriter writes one invoice as a row, replacing the row already holding
	// its id.
	RowWriter interface {
		Upsert(ctx context.Context, r core.Record) (rowRef string, err error)
	}

	// RowRemover clears the row holding id. Unknown ids are not an error.
	RowRemover interface {
		Remove(ctx context.Context, id string) error
	}

	// Resyncer rewrites the whole sheet from the given collection.
	Resyncer interface {
		Resync(ctx context.Context, records []core.Record) error
	}

	// Mirror keeps a spreadsheet copy of the invoice collection.
	Mirror interface {
		RowWriter
		RowRemover
		Resyncer
	}
)
