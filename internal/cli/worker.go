package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rechnungen/internal/cache"
	"rechnungen/internal/log"
	gsheet "rechnungen/internal/sheets/google"
	"rechnungen/internal/worker"
)

const cacheSweepInterval = 5 * time.Minute

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Mirror invoices into a Google Sheet",
		Long: "worker consumes record change events and keeps a Google Sheet in step with the " +
			"records service. Without AMQP it only runs the periodic full resync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(cmd.OutOrStdout(), validateApp)
			if err != nil {
				return err
			}
			if !cfg.SheetsEnabled() {
				return errors.New("worker needs GOOGLE_SPREADSHEET_ID")
			}
			logger.Info("Starting worker")

			ctx := GracefulShutdown(cmd.Context(), logger, shutdownTimeout, nil)

			client, err := NewRecordsClient(cfg, logger)
			if err != nil {
				return err
			}
			mirror, err := gsheet.New(ctx, gsheet.Config{
				SpreadsheetID: cfg.GoogleSpreadsheetID,
				SheetName:     cfg.GoogleSheetName,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("init google sheets: %w", err)
			}
			logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

			janitor := cache.NewJanitor(logger)
			janitor.Register(mirror.RowCache())
			janitor.Start(ctx, cacheSweepInterval)
			defer janitor.Stop()

			sync := worker.NewSyncWorker(client, mirror, logger)
			sync.StartupSync(ctx)

			resync := worker.NewResyncProcessor(sync, cfg.SyncInterval, logger)
			if err := resync.Start(ctx); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			if amqpClient, err := NewPublisher(cfg, logger); err != nil {
				return err
			} else if amqpClient != nil {
				defer amqpClient.Close()
				g.Go(func() error {
					err := amqpClient.ConsumeRecordChanges(gctx, sync.HandleRecordChange)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			} else {
				logger.Info("Skipping change events - relying on periodic resync")
			}
			g.Go(func() error {
				<-gctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("Shutting down worker")
				return resync.Stop(stopCtx)
			})

			if err := g.Wait(); err != nil {
				logger.Error("Worker stopped with error", log.FieldError, err)
				return err
			}
			return nil
		},
	}
}
