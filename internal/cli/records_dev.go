package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rechnungen/internal/backend"
	"rechnungen/internal/config"
	"rechnungen/internal/log"
	"rechnungen/internal/recordserver"
)

func newRecordsDevCmd() *cobra.Command {
	var addr, store string

	cmd := &cobra.Command{
		Use:   "records-dev",
		Short: "Run a local records service for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(cmd.OutOrStdout(), func(c *config.Config) error {
				if addr != "" {
					c.DevAddr = addr
				}
				if store != "" {
					c.DevStore = store
				}
				return c.ValidateDev()
			})
			if err != nil {
				return err
			}

			publicURL := devPublicURL(cfg)
			bcfg, err := backend.FromAppConfig(cfg, publicURL)
			if err != nil {
				return err
			}
			res, err := backend.NewFactory(logger).CreateBackend(cmd.Context(), bcfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					logger.Error("Failed to close records backend", log.FieldError, err)
				}
			}()

			handler := recordserver.New(res.Repository, res.Blobs, recordserver.Config{
				PublicURL:         publicURL,
				SessionCookieName: cfg.RecordsSessionCookieName,
				SessionCookie:     cfg.RecordsSessionCookie,
			}, logger).Handler()

			srv := &http.Server{
				Addr:              cfg.DevAddr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			ctx := GracefulShutdown(cmd.Context(), logger, shutdownTimeout, nil)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("Starting dev records service",
					"addr", cfg.DevAddr,
					"store", cfg.DevStore,
					"public_url", publicURL)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("records server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $DEV_ADDR)")
	cmd.Flags().StringVar(&store, "store", "", "record store: memory or sqlite (default $DEV_STORE)")
	return cmd
}

func devPublicURL(cfg *config.Config) string {
	if cfg.DevPublicURL != "" {
		return strings.TrimRight(cfg.DevPublicURL, "/")
	}
	if strings.HasPrefix(cfg.DevAddr, ":") {
		return "http://localhost" + cfg.DevAddr
	}
	return "http://" + cfg.DevAddr
}
