// Package catalog scrapes the configured listing pages and publishes the
// instruction documents the aggregators read: allFiles/<page>.json with every
// version and currentFiles/<page>.json with the versions in force today.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"plk-instructions/pkg/domain"
	"plk-instructions/pkg/scraper"
)

const (
	AllFilesDir     = "allFiles"
	CurrentFilesDir = "currentFiles"
)

var (
	ErrNoPages        = errors.New("no pages configured")
	ErrAllPagesFailed = errors.New("all pages failed")
)

// Page is a named listing page
type Page struct {
	Name string
	URL  string
}

// FileSaver persists scraped files (db.Client)
type FileSaver interface {
	SaveFile(ctx context.Context, page, pageTitle string, file domain.File) error
}

// Publisher uploads generated documents (publish.S3Store)
type Publisher interface {
	PutJSON(ctx context.Context, key string, data []byte) error
}

// Config holds configuration for the service
type Config struct {
	Pages     []Page
	OutputDir string
	Scraper   *scraper.Scraper
	Files     FileSaver // optional
	Publisher Publisher // optional
	Logger    *zap.Logger
	Now       func() time.Time
}

// Service runs one catalog pass over all pages
type Service struct {
	pages     []Page
	outputDir string
	scraper   *scraper.Scraper
	files     FileSaver
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Document is one written JSON document, Key is relative to the output directory
type Document struct {
	Page string
	Key  string
	Path string
}

// NewService creates a catalog service
func NewService(config Config) (*Service, error) {
	if len(config.Pages) == 0 {
		return nil, ErrNoPages
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	if config.Scraper == nil {
		config.Scraper = scraper.New(nil, config.Logger)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		pages:     config.Pages,
		outputDir: config.OutputDir,
		scraper:   config.Scraper,
		files:     config.Files,
		publisher: config.Publisher,
		logger:    config.Logger,
		now:       config.Now,
	}, nil
}

// Run processes every page in order. A failing page is logged and skipped;
// Run fails only when no page succeeds or ctx is done.
func (s *Service) Run(ctx context.Context) ([]Document, error) {
	for _, dir := range []string{AllFilesDir, CurrentFilesDir} {
		if err := os.MkdirAll(filepath.Join(s.outputDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var (
		written []Document
		failed  int
		lastErr error
	)
	for _, page := range s.pages {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		docs, err := s.RunPage(ctx, page)
		if err != nil {
			failed++
			lastErr = err
			s.logger.Error("Catalog: page failed",
				zap.String("page", page.Name),
				zap.String("url", page.URL),
				zap.Error(err))
			continue
		}
		written = append(written, docs...)
	}

	s.logger.Info("Catalog: run complete",
		zap.Int("pages", len(s.pages)),
		zap.Int("failed", failed),
		zap.Int("documents", len(written)))

	if failed == len(s.pages) {
		return nil, fmt.Errorf("%w: last error: %w", ErrAllPagesFailed, lastErr)
	}
	return written, nil
}

// RunPage scrapes one page and writes, persists and publishes its documents
func (s *Service) RunPage(ctx context.Context, page Page) ([]Document, error) {
	scraped, err := s.scraper.Scrape(ctx, page.Name, page.URL)
	if err != nil {
		return nil, err
	}

	files := scraped.Files
	if files == nil {
		files = []domain.File{}
	}
	current := scraper.CurrentVersions(files, domain.NewDate(s.now()))
	if current == nil {
		current = []domain.FileVersion{}
	}

	allDoc, err := s.write(page.Name, AllFilesDir, files)
	if err != nil {
		return nil, err
	}
	currentDoc, err := s.write(page.Name, CurrentFilesDir, current)
	if err != nil {
		return nil, err
	}
	docs := []Document{allDoc, currentDoc}

	if s.files != nil {
		for _, f := range files {
			if err := s.files.SaveFile(ctx, page.Name, scraped.Title, f); err != nil {
				return nil, fmt.Errorf("failed to save file: %w", err)
			}
		}
	}

	if s.publisher != nil {
		for _, doc := range docs {
			data, err := os.ReadFile(doc.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", doc.Path, err)
			}
			if err := s.publisher.PutJSON(ctx, doc.Key, data); err != nil {
				return nil, fmt.Errorf("failed to publish %s: %w", doc.Key, err)
			}
		}
	}

	s.logger.Info("Catalog: page written",
		zap.String("page", page.Name),
		zap.Int("files", len(files)),
		zap.Int("current", len(current)))
	return docs, nil
}

func (s *Service) write(page, dir string, v any) (Document, error) {
	data, err := EncodeJSON(v)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode %s/%s: %w", dir, page, err)
	}

	key := path.Join(dir, page+".json")
	target := filepath.Join(s.outputDir, filepath.FromSlash(key))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return Document{}, fmt.Errorf("failed to write %s: %w", target, err)
	}

	return Document{Page: page, Key: key, Path: target}, nil
}

// EncodeJSON encodes v with a 4-space indent, keeping non-ASCII text and
// HTML characters unescaped
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
