package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plk-instructions/pkg/aggregate"
	"plk-instructions/pkg/db"
	"plk-instructions/pkg/domain"
	"plk-instructions/pkg/urls"
)

// Document URL sources shared by instructions, stats and results
var (
	fromFile   string
	sitemapURL string
	feedURL    string
	indexURL   string
)

var (
	statsSave   bool
	statsLatest bool
)

var errNoURLs = errors.New("no document URLs given (pass URLs, a source flag, or set aggregate.urls)")

var instructionsCmd = &cobra.Command{
	Use:   "instructions [url...]",
	Short: "Print all instruction records of the given documents as one JSON array",
	Long: `Fetch each document in order and print their records as one JSON array.
Array documents contribute every element, object documents contribute
themselves, anything else contributes nothing. Unreachable or malformed
documents are skipped.`,
	RunE: runInstructions,
}

var statsCmd = &cobra.Command{
	Use:   "stats [url...]",
	Short: "Print per-document record counts",
	Long: `Fetch each document in order and print one {file, count, lastUpdate}
entry per document that could be fetched and parsed.

With --save the entries are stored as a snapshot in Postgres or Supabase.
With --latest the most recent stored snapshot is printed instead.`,
	RunE: runStats,
}

var resultsCmd = &cobra.Command{
	Use:   "results [url...]",
	Short: "Print the fetch outcome of every document",
	RunE:  runResults,
}

func init() {
	for _, cmd := range []*cobra.Command{instructionsCmd, statsCmd, resultsCmd} {
		rootCmd.AddCommand(cmd)
		cmd.Flags().StringVar(&fromFile, "from-file", "", "Read document URLs from a file (one per line)")
		cmd.Flags().StringVar(&sitemapURL, "sitemap", "", "Read document URLs from a sitemap")
		cmd.Flags().StringVar(&feedURL, "feed", "", "Read document URLs from an RSS/Atom feed")
		cmd.Flags().StringVar(&indexURL, "index", "", "Read .json document links from an HTML index page")
	}
	statsCmd.Flags().BoolVar(&statsSave, "save", false, "Store the entries as a snapshot")
	statsCmd.Flags().BoolVar(&statsLatest, "latest", false, "Print the latest stored snapshot")
}

func newAggregator() *aggregate.Aggregator {
	return aggregate.New(
		aggregate.WithClient(documentClient()),
		aggregate.WithLogger(logger),
	)
}

func runInstructions(cmd *cobra.Command, args []string) error {
	documentURLs, err := collectURLs(cmd.Context(), args, cfg.Aggregate.URLs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), newAggregator().Instructions(cmd.Context(), documentURLs))
}

func runResults(cmd *cobra.Command, args []string) error {
	documentURLs, err := collectURLs(cmd.Context(), args, cfg.Aggregate.URLs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), newAggregator().FetchAll(cmd.Context(), documentURLs))
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if statsLatest {
		store, closeStore, err := openStatsStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		snapshot, err := store.Latest(ctx)
		if err != nil {
			return fmt.Errorf("failed to read latest snapshot: %w", err)
		}
		logger.Info("Stats: latest snapshot",
			zap.String("run_id", snapshot.RunID.String()),
			zap.Time("created_at", snapshot.CreatedAt))
		return printJSON(cmd.OutOrStdout(), snapshot.Entries)
	}

	documentURLs, err := collectURLs(ctx, args, cfg.Aggregate.URLs)
	if err != nil {
		return err
	}
	entries := newAggregator().Stats(ctx, documentURLs)

	if statsSave {
		store, closeStore, err := openStatsStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := saveSnapshot(ctx, store, entries); err != nil {
			return err
		}
	}

	return printJSON(cmd.OutOrStdout(), entries)
}

// snapshotSaver is the part of db.StatsStore used by stats --save
type snapshotSaver interface {
	SaveSnapshot(ctx context.Context, runID uuid.UUID, entries []domain.StatEntry) error
}

// saveSnapshot stores entries under a new run ID. An empty run is reported
// and not stored.
func saveSnapshot(ctx context.Context, store snapshotSaver, entries []domain.StatEntry) error {
	runID := uuid.New()
	err := store.SaveSnapshot(ctx, runID, entries)
	if errors.Is(err, db.ErrEmptySnapshot) {
		logger.Warn("Stats: no document could be fetched, snapshot not saved; stats --latest still shows the previous run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	logger.Info("Stats: snapshot saved",
		zap.String("run_id", runID.String()),
		zap.Int("entries", len(entries)))
	return nil
}

// collectURLs returns the explicit URLs followed by those discovered through
// the source flags. With neither, the configured defaults are used.
func collectURLs(ctx context.Context, args []string, defaults []string) ([]string, error) {
	collected := append([]string{}, args...)

	sources := []struct {
		location string
		source   urls.Source
		filters  []urls.UrlFilter
	}{
		{fromFile, urls.NewFileParser(), nil},
		{sitemapURL, urls.NewSitemapParser().WithLogger(logger), []urls.UrlFilter{urls.NewBaseURLFilter()}},
		{feedURL, urls.NewRSSParser(), []urls.UrlFilter{urls.NewBaseURLFilter()}},
		{indexURL, urls.NewIndexFetcher(), []urls.UrlFilter{urls.NewSuffixFilter(".json")}},
	}

	for _, s := range sources {
		if s.location == "" {
			continue
		}
		found, err := urls.Resolve(ctx, []urls.Source{s.source}, s.location, s.filters...)
		if err != nil {
			return nil, fmt.Errorf("failed to read URLs from %s: %w", s.location, err)
		}
		collected = append(collected, found...)
	}

	if len(collected) == 0 {
		collected = append(collected, defaults...)
	}
	if len(collected) == 0 {
		return nil, errNoURLs
	}
	return collected, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
