package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"plk-instructions/pkg/db"
)

var errNoStatsBackend = errors.New("no stats backend configured (set postgres.dsn or supabase.url)")

// openPostgres connects the plain Postgres backend
func openPostgres(ctx context.Context) (*db.PostgresClient, error) {
	pg := db.NewPostgresClient(db.PostgresConfig{
		DSN:          cfg.Postgres.DSN,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
		ConnMaxLife:  cfg.Postgres.ConnMaxLife,
	})
	if err := pg.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pg, nil
}

// openStatsStore picks Postgres when a DSN is set and Supabase otherwise.
// The returned func closes the underlying connection.
func openStatsStore(ctx context.Context) (*db.StatsStore, func(), error) {
	if cfg.Postgres.DSN != "" {
		pg, err := openPostgres(ctx)
		if err != nil {
			return nil, nil, err
		}
		return db.NewStatsStore(pg), func() { _ = pg.Close() }, nil
	}

	if cfg.Supabase.URL == "" {
		return nil, nil, errNoStatsBackend
	}

	sb := db.NewSupabaseClient(db.SupabaseConfig{
		ConnectionString: cfg.Supabase.ConnectionString,
		SupabaseURL:      cfg.Supabase.URL,
		SupabaseKey:      cfg.Supabase.Key,
		Password:         cfg.Supabase.Password,
	}).WithLogger(logger)
	if err := sb.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to supabase: %w", err)
	}
	logger.Debug("Stats: using supabase", zap.Bool("direct", sb.HasDirectDB()))
	return db.NewSupabaseStatsStore(sb), func() { _ = sb.Close() }, nil
}
