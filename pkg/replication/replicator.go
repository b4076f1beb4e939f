// Package replication copies scraped instruction files from MongoDB to Postgres.
package replication

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"plk-instructions/pkg/db"
	"plk-instructions/pkg/domain"
)

const defaultBatchSize = 100

// FileSource lists stored files (db.Client)
type FileSource interface {
	GetAllFiles(ctx context.Context) ([]db.StoredFile, error)
}

// Config wires the replication dependencies.
type Config struct {
	Mongo     FileSource
	Postgres  db.DBProvider
	BatchSize int
	Logger    *zap.Logger
}

// Replicator replicates instruction versions from MongoDB into the Postgres
// instruction_version table. Rows already present are left untouched.
type Replicator struct {
	mongo     FileSource
	pg        db.DBProvider
	batchSize int
	logger    *zap.Logger
}

// versionRow is one row of instruction_version
type versionRow struct {
	page    string
	number  string
	version domain.FileVersion
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Mongo == nil {
		return nil, fmt.Errorf("mongo client is required")
	}
	if cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Replicator{
		mongo:     cfg.Mongo,
		pg:        cfg.Postgres,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}, nil
}

// ReplicateVersions copies every stored version and returns how many rows were inserted
func (r *Replicator) ReplicateVersions(ctx context.Context) (int, error) {
	if err := r.ensureVersionSchema(ctx); err != nil {
		return 0, err
	}

	files, err := r.mongo.GetAllFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("read files from mongo: %w", err)
	}

	rows := flatten(files)
	r.logger.Info("Replication: loaded versions from Mongo",
		zap.Int("files", len(files)),
		zap.Int("versions", len(rows)))

	inserted := 0
	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))

		n, err := r.insertVersionsTx(ctx, rows[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert batch [%d:%d]: %w", start, end, err)
		}
		inserted += n
		r.logger.Debug("Replication: batch done",
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Int("inserted", n))
	}

	r.logger.Info("Replication: complete",
		zap.Int("processed", len(rows)),
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(rows)-inserted))
	return inserted, nil
}

// flatten turns stored files into one row per version, keeping version order
func flatten(files []db.StoredFile) []versionRow {
	var rows []versionRow
	for _, f := range files {
		for _, v := range f.File.Versions {
			rows = append(rows, versionRow{page: f.Page, number: f.File.Number, version: v})
		}
	}
	return rows
}

func (r *Replicator) ensureVersionSchema(ctx context.Context) error {
	if r.pg.DB() == nil {
		return db.ErrNotConnected
	}

	// version_key identifies a version within a file, see versionKey
	const ddl = `
CREATE TABLE IF NOT EXISTS instruction_version (
  page TEXT NOT NULL,
  number TEXT NOT NULL,
  version_key TEXT NOT NULL,
  resource_url TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  wcag BOOLEAN NOT NULL DEFAULT false,
  from_date DATE,
  to_date DATE,
  replicated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (page, number, version_key)
);`

	if _, err := r.pg.DB().ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create instruction_version table: %w", err)
	}
	return nil
}

// insertVersionsTx inserts a batch within a transaction and returns the number of new rows
func (r *Replicator) insertVersionsTx(ctx context.Context, batch []versionRow) (int, error) {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `
INSERT INTO instruction_version (page, number, version_key, resource_url, name, wcag, from_date, to_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (page, number, version_key) DO NOTHING`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range batch {
		v := row.version
		key := versionKey(v)
		res, err := stmt.ExecContext(ctx, row.page, row.number, key, v.ResourceURL, v.Name, v.WCAG,
			nullDate(v.FromDate), nullDate(v.ToDate))
		if err != nil {
			return 0, fmt.Errorf("insert version %s/%s %q: %w", row.page, row.number, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			continue
		}
		inserted += int(n)
		if n == 0 {
			r.logger.Debug("Replication: version already present",
				zap.String("page", row.page),
				zap.String("number", row.number),
				zap.String("version_key", key))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// versionKey is the resource URL, or for versions without a link the name,
// WCAG flag and validity dates
func versionKey(v domain.FileVersion) string {
	if v.ResourceURL != "" {
		return v.ResourceURL
	}
	return fmt.Sprintf("%s|wcag=%t|%s|%s", v.Name, v.WCAG, dateKey(v.FromDate), dateKey(v.ToDate))
}

func dateKey(d domain.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(domain.DateLayout)
}

func nullDate(d domain.Date) sql.NullTime {
	if d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}
