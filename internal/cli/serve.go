package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rechnungen/internal/config"
	apphttp "rechnungen/internal/http"
	"rechnungen/internal/loader"
	"rechnungen/internal/log"
	"rechnungen/internal/middleware/ratelimit"
	"rechnungen/internal/services"
)

const shutdownTimeout = 30 * time.Second

// bootstrap sets up logging to out and loads the validated configuration.
func bootstrap(out io.Writer, validate func(*config.Config) error) (*config.Config, *log.Logger, error) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, out)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return nil, nil, err
	}
	return cfg, logger, nil
}

func validateApp(cfg *config.Config) error { return cfg.Validate() }

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the invoice dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(cmd.OutOrStdout(), validateApp)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + cfg.Port
			}

			client, err := NewRecordsClient(cfg, logger)
			if err != nil {
				return err
			}
			var publisher services.ChangePublisher
			amqpClient, err := NewPublisher(cfg, logger)
			if err != nil {
				// change events are optional, the dashboard works without them
				logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			} else if amqpClient != nil {
				publisher = amqpClient
			}

			svc := services.NewInvoiceService(client, loader.New(client, logger), publisher, logger)
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("Failed to close invoice service", log.FieldError, err)
				}
			}()

			extractor, err := NewExtractor(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("init extraction: %w", err)
			}

			srv, err := apphttp.NewServer(apphttp.Config{
				Addr:        addr,
				FileOrigins: fileOrigins(cfg),
				RateLimit:   ratelimit.DefaultConfig(),
				Logger:      logger,
			}, svc, extractor)
			if err != nil {
				return err
			}

			ctx := GracefulShutdown(cmd.Context(), logger, shutdownTimeout, nil)
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("Starting dashboard", "addr", addr, "records", cfg.RecordsBaseURL)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("dashboard server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				if _, err := svc.Loader().Load(gctx); err != nil {
					logger.Warn("Initial load failed, pages will retry", log.FieldError, err)
				}
				<-gctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("Shutting down dashboard")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":$PORT\")")
	return cmd
}

// fileOrigins lists the hosts uploaded invoices are served from.
func fileOrigins(cfg *config.Config) []string {
	var out []string
	for _, raw := range []string{cfg.RecordsBaseURL, cfg.DevPublicURL} {
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
			out = append(out, u.Scheme+"://"+u.Host)
		}
	}
	if cfg.GCSBucket != "" {
		out = append(out, "https://storage.googleapis.com")
	}
	return out
}
