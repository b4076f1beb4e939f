package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supabase "github.com/supabase-community/supabase-go"

	"plk-instructions/pkg/domain"
)

const statsTable = "instruction_stats"

var (
	// ErrNoSnapshot is returned by Latest when no snapshot was saved yet
	ErrNoSnapshot = errors.New("no stats snapshot stored")
	// ErrEmptySnapshot is returned by SaveSnapshot for a run without entries
	ErrEmptySnapshot = errors.New("empty stats snapshot")
)

// Snapshot is one saved run of the stats aggregator
type Snapshot struct {
	RunID     uuid.UUID
	CreatedAt time.Time
	Entries   []domain.StatEntry
}

// StatsStore persists stats aggregator output in the instruction_stats table,
// through a direct connection when one exists and through the Supabase REST API otherwise.
type StatsStore struct {
	provider DBProvider
	rest     *supabase.Client
}

// statRow is the REST representation of one instruction_stats row
type statRow struct {
	RunID     string    `json:"run_id"`
	Position  int       `json:"position"`
	File      string    `json:"file"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStatsStore creates a store over a direct SQL connection
func NewStatsStore(provider DBProvider) *StatsStore {
	return &StatsStore{provider: provider}
}

// NewSupabaseStatsStore creates a store that prefers the direct connection of c
// and falls back to its REST API
func NewSupabaseStatsStore(c *SupabaseClient) *StatsStore {
	return &StatsStore{provider: c, rest: c.SDK()}
}

func (s *StatsStore) sqlDB() *sql.DB {
	if s.provider == nil {
		return nil
	}
	return s.provider.DB()
}

// EnsureSchema creates the instruction_stats table. In REST mode the table must
// already exist and this is a no-op.
func (s *StatsStore) EnsureSchema(ctx context.Context) error {
	db := s.sqlDB()
	if db == nil {
		if s.rest != nil {
			return nil
		}
		return ErrNotConnected
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS instruction_stats (
  run_id UUID NOT NULL,
  position INT NOT NULL,
  file TEXT NOT NULL,
  count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (run_id, position)
);`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", statsTable, err)
	}
	return nil
}

// SaveSnapshot stores entries under runID, keeping their order. Nothing is
// stored for an empty run and ErrEmptySnapshot is returned, so Latest keeps
// reporting the previous snapshot.
func (s *StatsStore) SaveSnapshot(ctx context.Context, runID uuid.UUID, entries []domain.StatEntry) error {
	if len(entries) == 0 {
		return ErrEmptySnapshot
	}

	now := time.Now().UTC()
	if db := s.sqlDB(); db != nil {
		return s.insertTx(ctx, db, runID, now, entries)
	}
	if s.rest != nil {
		return s.insertREST(runID, now, entries)
	}
	return ErrNotConnected
}

func (s *StatsStore) insertTx(ctx context.Context, db *sql.DB, runID uuid.UUID, createdAt time.Time, entries []domain.StatEntry) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `
INSERT INTO instruction_stats (run_id, position, file, count, created_at)
VALUES ($1, $2, $3, $4, $5)`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID.String(), i, e.File, e.Count, createdAt); err != nil {
			return fmt.Errorf("insert stat file=%q: %w", e.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *StatsStore) insertREST(runID uuid.UUID, createdAt time.Time, entries []domain.StatEntry) error {
	rows := make([]statRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, statRow{
			RunID:     runID.String(),
			Position:  i,
			File:      e.File,
			Count:     e.Count,
			CreatedAt: createdAt,
		})
	}

	if _, _, err := s.rest.From(statsTable).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert stats via REST: %w", err)
	}
	return nil
}

// Latest returns the most recently saved snapshot
func (s *StatsStore) Latest(ctx context.Context) (*Snapshot, error) {
	if db := s.sqlDB(); db != nil {
		return s.latestSQL(ctx, db)
	}
	if s.rest != nil {
		return s.latestREST()
	}
	return nil, ErrNotConnected
}

func (s *StatsStore) latestSQL(ctx context.Context, db *sql.DB) (*Snapshot, error) {
	const query = `
SELECT run_id, file, count, created_at
FROM instruction_stats
WHERE run_id = (SELECT run_id FROM instruction_stats ORDER BY created_at DESC LIMIT 1)
ORDER BY position`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest stats: %w", err)
	}
	defer rows.Close()

	var snapshot *Snapshot
	for rows.Next() {
		var (
			runID     string
			entry     domain.StatEntry
			createdAt time.Time
		)
		if err := rows.Scan(&runID, &entry.File, &entry.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		if snapshot == nil {
			id, err := uuid.Parse(runID)
			if err != nil {
				return nil, fmt.Errorf("parse run id: %w", err)
			}
			snapshot = &Snapshot{RunID: id, CreatedAt: createdAt}
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return snapshot, nil
}

func (s *StatsStore) latestREST() (*Snapshot, error) {
	var head []statRow
	if _, err := s.rest.From(statsTable).
		Select("run_id,created_at", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		ExecuteTo(&head); err != nil {
		return nil, fmt.Errorf("query latest run via REST: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrNoSnapshot
	}

	var rows []statRow
	if _, err := s.rest.From(statsTable).
		Select("*", "", false).
		Eq("run_id", head[0].RunID).
		Order("position", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query stats via REST: %w", err)
	}

	id, err := uuid.Parse(head[0].RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}

	snapshot := &Snapshot{RunID: id, CreatedAt: head[0].CreatedAt}
	for _, r := range rows {
		snapshot.Entries = append(snapshot.Entries, domain.StatEntry{File: r.File, Count: r.Count})
	}
	return snapshot, nil
}
