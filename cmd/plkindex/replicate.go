package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plk-instructions/pkg/db"
	"plk-instructions/pkg/replication"
)

var replicateBatchSize int

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Copy stored instruction versions from MongoDB to Postgres",
	RunE:  runReplicate,
}

func init() {
	rootCmd.AddCommand(replicateCmd)
	replicateCmd.Flags().IntVar(&replicateBatchSize, "batch-size", 100, "Rows per insert transaction")
}

func runReplicate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}

	mongo := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	if err := mongo.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer mongo.Close(ctx)

	pg, err := openPostgres(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	replicator, err := replication.NewReplicator(replication.Config{
		Mongo:     mongo,
		Postgres:  pg,
		BatchSize: replicateBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	inserted, err := replicator.ReplicateVersions(ctx)
	if err != nil {
		return fmt.Errorf("replication failed: %w", err)
	}
	logger.Info("Replicate: done", zap.Int("inserted", inserted))
	return nil
}
