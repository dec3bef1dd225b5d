package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"rechnungen/internal/amqp"
	"rechnungen/internal/core"
	"rechnungen/internal/loader"
	"rechnungen/internal/log"
	"rechnungen/internal/records"
)

// ChangePublisher announces record changes to other processes.
type ChangePublisher interface {
	PublishRecordChange(ctx context.Context, id string, op amqp.ChangeOp) error
}

// InvoiceService orchestrates invoice mutations: the remote call is awaited,
// then the loaded collection is brought up to date, then a change event is
// published.
type InvoiceService struct {
	client     records.Client
	loader     *loader.Loader
	publisher  ChangePublisher
	logger     *log.Logger
	structured *log.StructuredLogger
}

// NewInvoiceService wires the service. publisher may be nil.
func NewInvoiceService(client records.Client, l *loader.Loader, publisher ChangePublisher, logger *log.Logger) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvoiceService{
		client:     client,
		loader:     l,
		publisher:  publisher,
		logger:     logger.WithComponent(log.ComponentInvoice),
		structured: log.NewStructuredLogger(logger),
	}
}

// Loader exposes the collection the views render from.
func (s *InvoiceService) Loader() *loader.Loader {
	return s.loader
}

// Create stores a new invoice and refetches the collection.
func (s *InvoiceService) Create(ctx context.Context, fields core.Fields) (core.Record, error) {
	created, err := s.client.Create(ctx, fields)
	if err != nil {
		return core.Record{}, fmt.Errorf("create invoice: %w", err)
	}
	s.structured.LogRecordMutation(ctx, log.OpCreate, created.ID, deref(created.InvoiceNumber), created.AmountCents())

	s.refresh(ctx)
	s.publish(ctx, created.ID, amqp.OpUpsert)
	return created, nil
}

// Update applies a partial change and refetches the collection.
func (s *InvoiceService) Update(ctx context.Context, id string, patch core.Patch) (core.Record, error) {
	updated, err := s.client.Update(ctx, id, patch)
	if err != nil {
		return core.Record{}, fmt.Errorf("update invoice %s: %w", id, err)
	}
	s.structured.LogRecordMutation(ctx, log.OpUpdate, updated.ID, deref(updated.InvoiceNumber), updated.AmountCents())

	s.refresh(ctx)
	s.publish(ctx, id, amqp.OpUpsert)
	return updated, nil
}

// Submit creates when id is empty and updates otherwise. The form only
// collects fields; choosing the operation is up to the caller.
func (s *InvoiceService) Submit(ctx context.Context, id string, patch core.Patch) (core.Record, error) {
	if id == "" {
		return s.Create(ctx, core.Fields{}.Apply(patch))
	}
	return s.Update(ctx, id, patch)
}

// Delete removes the invoice remotely and then from the local collection.
// No refetch follows.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete invoice %s: %w", id, err)
	}
	s.loader.Remove(id)
	s.structured.LogRecordMutation(ctx, log.OpDelete, id, "", 0)

	s.publish(ctx, id, amqp.OpDelete)
	return nil
}

// Get fetches one invoice straight from the service.
func (s *InvoiceService) Get(ctx context.Context, id string) (core.Record, error) {
	return s.client.Get(ctx, id)
}

// UploadInvoiceFile stores the document and returns the URL for rechnung_datei.
func (s *InvoiceService) UploadInvoiceFile(ctx context.Context, r io.Reader, filename string) (string, error) {
	return s.client.UploadFile(ctx, r, filename)
}

// refresh brings the collection up to date after a mutation. A failed
// refetch leaves its error in the loader state; the mutation itself stands.
func (s *InvoiceService) refresh(ctx context.Context) {
	if err := s.loader.Refresh(ctx); err != nil && !errors.Is(err, loader.ErrSuperseded) {
		s.logger.WarnContext(ctx, "Refetch after mutation failed", log.FieldError, err)
	}
}

func (s *InvoiceService) publish(ctx context.Context, id string, op amqp.ChangeOp) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChange(ctx, id, op); err != nil {
		// the mutation is already stored remotely
		s.logger.ErrorContext(ctx, "Failed to publish record change",
			log.FieldRecordID, id,
			log.FieldOperation, string(op),
			log.FieldError, err)
	}
}

// Close releases the publisher when it holds a connection.
func (s *InvoiceService) Close() error {
	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
