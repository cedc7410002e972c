package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-scraper/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog HTTP API",
		Long: "Starts the HTTP server exposing the scrape triggers, the read " +
			"endpoints for stored categories and products, and the health and " +
			"metrics probes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	handler := api.NewServer(
		svc.coordinator,
		svc.store,
		svc.store,
		time.Duration(svc.cfg.Server.RequestTimeout)*time.Second,
		svc.logger,
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", svc.cfg.Server.Port),
		Handler:           handler.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		svc.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
