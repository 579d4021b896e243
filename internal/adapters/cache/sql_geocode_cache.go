package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"
)

// SQLGeocodeCache persists geocoder results in Postgres across sessions.
// Rows are keyed by domain.GeocodeKey; lookups accept any spelling that
// normalizes to the same key and answer under the spelling requested.
type SQLGeocodeCache struct {
	DB *sql.DB
}

func NewSQLGeocodeCache(db *sql.DB) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: db}
}

func (s *SQLGeocodeCache) GetMany(
	ctx context.Context,
	texts []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.postgres.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	lookup := newGeocodeLookup(texts)
	out := make(map[string]domain.Coordinates, len(texts))
	if len(lookup.keys) == 0 {
		return out, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT query, lat, lng FROM geocode_cache WHERE query = ANY($1::text[])`,
		lookup.keys,
	)
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

func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.postgres.PutMany")(&err)

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

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO geocode_cache (query, lat, lng)
	VALUES ($1, $2, $3)
	ON CONFLICT (query) DO UPDATE
	SET lat = EXCLUDED.lat, lng = EXCLUDED.lng;
	`)
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
