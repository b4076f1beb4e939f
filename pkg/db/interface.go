package db

import (
	"database/sql"
	"errors"
)

// ErrNotConnected is returned when a store is used before its client connected
var ErrNotConnected = errors.New("database not connected")

// DBProvider is implemented by database clients that expose a sql.DB handle.
// PostgresClient and SupabaseClient are interchangeable through it.
type DBProvider interface {
	DB() *sql.DB
}
