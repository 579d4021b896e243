package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the SQLite cache schema.
func InitSchema(db *sql.DB) error {
	return initSchema(db, sqliteStatements)
}

// Initialize the Postgres cache schema.
func InitPostgresSchema(db *sql.DB) error {
	return initSchema(db, postgresStatements)
}

var sqliteStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS route_segments (
        trip_id TEXT NOT NULL,
        from_stop_id TEXT NOT NULL,
        to_stop_id TEXT NOT NULL,
        geometry TEXT NOT NULL,
        duration_seconds REAL NOT NULL,
        distance_meters REAL NOT NULL,
        updated_at INTEGER NOT NULL,
        PRIMARY KEY (trip_id, from_stop_id, to_stop_id)
    );
	`,
	`
	CREATE TABLE IF NOT EXISTS geocode_cache (
        query TEXT PRIMARY KEY,
        lat REAL NOT NULL,
        lng REAL NOT NULL
    );
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_route_segments_updated_at
    ON route_segments(updated_at);
	`,
}

var postgresStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS route_segments (
        trip_id TEXT NOT NULL,
        from_stop_id TEXT NOT NULL,
        to_stop_id TEXT NOT NULL,
        geometry JSONB NOT NULL,
        duration_seconds DOUBLE PRECISION NOT NULL,
        distance_meters DOUBLE PRECISION NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (trip_id, from_stop_id, to_stop_id)
    );
	`,
	`
	CREATE TABLE IF NOT EXISTS geocode_cache (
        query TEXT PRIMARY KEY,
        lat DOUBLE PRECISION NOT NULL,
        lng DOUBLE PRECISION NOT NULL
    );
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_route_segments_updated_at
    ON route_segments(updated_at);
	`,
}

func initSchema(db *sql.DB, statements []string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
