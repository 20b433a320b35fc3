package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/trail-community-service/pkg/api"
	"github.com/gilchrisn/trail-community-service/pkg/metrics"
	"github.com/gilchrisn/trail-community-service/pkg/service"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis over HTTP",
		Long: `Serve starts the HTTP API under /api/v1 and Prometheus metrics under
/metrics. A journal table given with --data is loaded at startup; more can be
uploaded to /api/v1/datasets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("address", "", "listen address (default: server.address)")
	_ = a.cfg.Viper().BindPFlag("server.address", cmd.Flags().Lookup("address"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	logger.Info().Str("version", Version).Msg("Starting trail community service")

	m := metrics.New()
	datasets := service.NewDatasetService(
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithLoaderOptions(a.cfg.LoaderOptions(logger)...),
		service.WithAnalyzerOptions(a.analyzerOptions()...),
	)

	if path := a.cfg.DataPath(); path != "" {
		format, err := a.cfg.DataFormat()
		if err != nil {
			return err
		}
		if _, err := datasets.LoadFile(ctx, path, path, format); err != nil {
			return err
		}
	}

	handlers := api.NewHandlers(datasets, a.cfg.Years(), a.cfg.MaxUploadBytes())
	mw := api.NewMiddleware(logger, m, a.cfg.RateLimitRPS(), a.cfg.RateLimitBurst())

	server := &http.Server{
		Addr:         a.cfg.ServerAddress(),
		Handler:      api.NewRouter(handlers, mw, m, a.cfg.AllowedOrigins()),
		ReadTimeout:  a.cfg.ReadTimeout(),
		WriteTimeout: a.cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("Server shutdown complete")
	return nil
}
