// Package cli wires configuration, logging and the records stack into the
// rechnungen commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rechnungen/internal/amqp"
	"rechnungen/internal/config"
	"rechnungen/internal/extract"
	"rechnungen/internal/extract/gemini"
	"rechnungen/internal/extract/httpapi"
	"rechnungen/internal/log"
	"rechnungen/internal/middleware/metrics"
	"rechnungen/internal/records/hosted"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(level string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Output = out
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig(logger *log.Logger) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return nil, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// cleanup runs with a context bounded by timeout before the returned context
// is cancelled.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
	}()

	return ctx
}

// NewRecordsClient builds the hosted-records client with instrumented transport.
func NewRecordsClient(cfg *config.Config, logger *log.Logger) (*hosted.Client, error) {
	return hosted.New(hosted.Config{
		BaseURL:           cfg.RecordsBaseURL,
		AppID:             cfg.RecordsAppID,
		SessionCookie:     cfg.RecordsSessionCookie,
		SessionCookieName: cfg.RecordsSessionCookieName,
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: metrics.InstrumentTransport(nil),
		},
		Logger: logger,
	})
}

// NewExtractor returns the configured extraction backend, or nil when
// extraction is switched off.
func NewExtractor(ctx context.Context, cfg *config.Config, logger *log.Logger) (extract.Extractor, error) {
	var backend extract.Extractor
	switch cfg.ExtractBackend {
	case "gemini":
		c, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.ExtractModel})
		if err != nil {
			return nil, err
		}
		backend = c
	case "http":
		c, err := httpapi.New(httpapi.Config{Endpoint: cfg.ExtractEndpoint})
		if err != nil {
			return nil, err
		}
		backend = c
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown extract backend %q", cfg.ExtractBackend)
	}
	logger.Info("Extraction enabled", "backend", cfg.ExtractBackend, "model", cfg.ExtractModel)
	return extract.Instrument(backend, logger), nil
}

// NewPublisher connects to AMQP when configured. A nil publisher disables
// change events.
func NewPublisher(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	return client, nil
}
