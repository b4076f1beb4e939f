package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plk-instructions/pkg/aggregate"
	"plk-instructions/pkg/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the instruction and stats endpoints over HTTP",
	Long: `Start the HTTP API:

  GET /api/instructions?url=...   merged instruction records
  GET /api/stats?url=...          per-document counts
  GET /api/results?url=...        fetch outcome per document
  GET /files/...                  scraped documents (server.files_dir)
  GET /metrics                    Prometheus metrics
  GET /health

Without url parameters aggregate.urls is used. A url parameter must be one of
aggregate.urls or start with one of server.allowed_url_prefixes; others get 400.
Each request's fetches are bounded by server.fetch_timeout.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	agg := aggregate.New(
		aggregate.WithClient(documentClient()),
		aggregate.WithLogger(logger),
		aggregate.WithMetrics(aggregate.NewMetrics(reg)),
	)

	filesDir := cfg.Server.FilesDir
	if filesDir == "" {
		filesDir = cfg.Scrape.OutputDir
	}

	api := server.New(server.Config{
		Aggregator:      agg,
		DefaultURLs:     cfg.Aggregate.URLs,
		AllowedPrefixes: cfg.Server.AllowedURLPrefixes,
		FetchTimeout:    cfg.Server.FetchTimeout,
		FilesDir:        filesDir,
		Gatherer:        reg,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return listenAndServe(cmd.Context(), srv)
}

// listenAndServe runs srv until ctx is done, then shuts it down gracefully
func listenAndServe(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server: stopped")
	return nil
}
