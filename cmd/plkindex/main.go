// Command plkindex scrapes railway instruction listings and aggregates the
// published instruction documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plk-instructions/pkg/config"
	"plk-instructions/pkg/httpclient"
	"plk-instructions/pkg/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "plkindex",
	Short: "Scrape and aggregate PKP PLK instruction documents",
	Long: `plkindex scrapes the PKP PLK instruction listing pages into JSON documents
(allFiles/<page>.json and currentFiles/<page>.json) and aggregates published
documents into a single instruction list or per-document statistics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded

		l, err := logging.New(cfg.Logger.Level, cfg.Logger.Format)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml or ./configs/config.yaml)")
}

// documentClient builds the client used to fetch instruction documents
func documentClient() *httpclient.HTTPClient {
	var opts []httpclient.Option
	if cfg.HTTP.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.HTTP.Timeout))
	}
	return httpclient.NewClient(httpclient.JSONClient, opts...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
