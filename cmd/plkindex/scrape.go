package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plk-instructions/pkg/catalog"
	"plk-instructions/pkg/db"
	"plk-instructions/pkg/httpclient"
	"plk-instructions/pkg/publish"
	"plk-instructions/pkg/scraper"
)

var (
	scrapeOutputDir string
	scrapeNoStore   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the configured listing pages into JSON documents",
	Long: `Fetch every configured listing page and write allFiles/<page>.json with all
versions and currentFiles/<page>.json with the versions in force today.

When mongo.uri is set the files are also upserted into MongoDB; when
s3.endpoint is set both documents are uploaded under the same keys.`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().StringVarP(&scrapeOutputDir, "output", "o", "", "Output directory (overrides scrape.output_dir)")
	scrapeCmd.Flags().BoolVar(&scrapeNoStore, "no-store", false, "Only write local files, skip MongoDB and S3")
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pages := make([]catalog.Page, 0, len(cfg.Scrape.Pages))
	for _, p := range cfg.Scrape.Pages {
		pages = append(pages, catalog.Page{Name: p.Name, URL: p.URL})
	}

	outputDir := cfg.Scrape.OutputDir
	if scrapeOutputDir != "" {
		outputDir = scrapeOutputDir
	}

	var opts []httpclient.Option
	if cfg.Scrape.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(cfg.Scrape.Timeout))
	}

	serviceCfg := catalog.Config{
		Pages:     pages,
		OutputDir: outputDir,
		Scraper:   scraper.New(httpclient.NewClient(httpclient.BrowserClient, opts...), logger),
		Logger:    logger,
	}

	if !scrapeNoStore && cfg.Mongo.URI != "" {
		mongo := db.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := mongo.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer mongo.Close(ctx)
		serviceCfg.Files = mongo
	}

	if !scrapeNoStore && cfg.S3.Endpoint != "" {
		store, err := publish.NewS3Store(publish.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return err
		}
		serviceCfg.Publisher = store
	}

	service, err := catalog.NewService(serviceCfg)
	if err != nil {
		return err
	}

	docs, err := service.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	for _, doc := range docs {
		logger.Info("Scrape: wrote document", zap.String("page", doc.Page), zap.String("path", doc.Path))
	}
	return nil
}
