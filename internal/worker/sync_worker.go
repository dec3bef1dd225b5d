package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rechnungen/internal/amqp"
	"rechnungen/internal/core"
	"rechnungen/internal/log"
	"rechnungen/internal/records"
	"rechnungen/internal/sheets"
)

// Source is the read side of the records service the worker mirrors from.
type Source interface {
	records.Lister
	records.Getter
}

// SyncWorker keeps a sheets.Mirror in step with the records service.
type SyncWorker struct {
	source Source
	mirror sheets.Mirror
	logger *log.Logger
}

func NewSyncWorker(source Source, mirror sheets.Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		source: source,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecordChange applies one change message. The record is always read
// back from the service so the sheet reflects the stored state, not the state
// at publish time. A record that is gone by now is removed from the sheet.
func (w *SyncWorker) HandleRecordChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	w.logger.InfoContext(ctx, "Processing record change",
		log.FieldRecordID, msg.ID,
		log.FieldOperation, string(msg.Op),
		"published_at", msg.Timestamp)

	if msg.Op == amqp.OpDelete {
		return w.remove(ctx, msg.ID)
	}

	rec, err := w.source.Get(ctx, msg.ID)
	if errors.Is(err, records.ErrNotFound) {
		w.logger.InfoContext(ctx, "Record vanished before sync, removing from sheet", log.FieldRecordID, msg.ID)
		return w.remove(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get record %s: %w", msg.ID, err)
	}
	return w.upsert(ctx, rec)
}

// Resync rewrites the whole sheet from the current collection. It is the
// backup path for lost messages and worker downtime.
func (w *SyncWorker) Resync(ctx context.Context) error {
	start := time.Now()
	list, err := w.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if err := w.mirror.Resync(ctx, list); err != nil {
		return fmt.Errorf("resync sheet: %w", err)
	}
	w.logger.InfoContext(ctx, "Sheet resynced",
		log.FieldOperation, log.OpSync,
		log.FieldRecordCount, len(list),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// StartupSync runs one Resync at worker start. Failures are logged and the
// worker keeps going on change messages.
func (w *SyncWorker) StartupSync(ctx context.Context) {
	if err := w.Resync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sync failed", log.FieldError, err)
	}
}

func (w *SyncWorker) upsert(ctx context.Context, rec core.Record) error {
	ref, err := w.mirror.Upsert(ctx, rec)
	if err != nil {
		return fmt.Errorf("upsert row: %w", err)
	}
	w.logger.InfoContext(ctx, "Synced invoice to sheet",
		log.FieldRecordID, rec.ID,
		log.FieldAmountCents, rec.AmountCents(),
		"sheets_ref", ref)
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove row: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed invoice from sheet", log.FieldRecordID, id)
	return nil
}
