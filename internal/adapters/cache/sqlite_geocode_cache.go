package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"
)

// SqliteGeocodeCache is the SQLite counterpart of SQLGeocodeCache.
type SqliteGeocodeCache struct {
	DB *sql.DB
}

func NewSqliteGeocodeCache(db *sql.DB) *SqliteGeocodeCache {
	return &SqliteGeocodeCache{DB: db}
}

func (s *SqliteGeocodeCache) GetMany(
	ctx context.Context,
	texts []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.sqlite.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	lookup := newGeocodeLookup(texts)
	out := make(map[string]domain.Coordinates, len(texts))
	if len(lookup.keys) == 0 {
		return out, nil
	}

	// SQLite cannot bind a slice; only placeholders are interpolated.
	args := make([]any, len(lookup.keys))
	for i, k := range lookup.keys {
		args[i] = k
	}
	q := fmt.Sprintf(
		`SELECT query, lat, lng FROM geocode_cache WHERE query IN (%s)`,
		strings.TrimSuffix(strings.Repeat("?,", len(args)), ","),
	)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get geocodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var c domain.Coordinates
		if err := rows.Scan(&key, &c.Lat, &c.Lng); err != nil {
			return nil, fmt.Errorf("get geocodes: scan: %w", err)
		}
		lookup.fill(out, key, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocodes: %w", err)
	}

	return out, nil
}

func (s *SqliteGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.sqlite.PutMany")(&err)

	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	rows, err := geocodeRows(results)
	if err != nil {
		return fmt.Errorf("put geocodes: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put geocodes: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO geocode_cache (query, lat, lng) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("put geocodes: prepare: %w", err)
	}
	defer stmt.Close()

	for key, c := range rows {
		if _, err := stmt.ExecContext(ctx, key, c.Lat, c.Lng); err != nil {
			return fmt.Errorf("put geocode %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put geocodes: commit: %w", err)
	}
	return nil
}
