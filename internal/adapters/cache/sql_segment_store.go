package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"
)

// SQLSegmentStore is a Postgres-backed durable store for routed segments.
type SQLSegmentStore struct {
	DB *sql.DB
}

func NewSQLSegmentStore(db *sql.DB) *SQLSegmentStore {
	return &SQLSegmentStore{DB: db}
}

func (s *SQLSegmentStore) Get(
	ctx context.Context,
	key domain.SegmentKey,
) (_ domain.RouteSegment, _ bool, err error) {
	defer obs.Time(ctx, "segment.sql.Get")(&err)

	if s.DB == nil {
		return domain.RouteSegment{}, false, errors.New("segment store: db is nil")
	}
	if err := validKey(key); err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment: %w", err)
	}

	q := `
	SELECT geometry, duration_seconds, distance_meters, updated_at
    FROM route_segments
    WHERE trip_id = $1
        AND from_stop_id = $2
        AND to_stop_id = $3;
	`

	var geometry string
	seg := domain.RouteSegment{FromStopID: key.From, ToStopID: key.To}
	err = s.DB.QueryRowContext(ctx, q, key.TripID, key.From, key.To).
		Scan(&geometry, &seg.LegDurationSeconds, &seg.LegDistanceMeters, &seg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteSegment{}, false, nil
	}
	if err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment %s: query route_segments table: %w", key, err)
	}

	seg.Geometry, err = decodeGeometry(geometry)
	if err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment %s: %w", key, err)
	}

	return seg, true, nil
}

func (s *SQLSegmentStore) Put(ctx context.Context, key domain.SegmentKey, seg domain.RouteSegment) error {
	if s.DB == nil {
		return errors.New("segment store: db is nil")
	}
	if err := validKey(key); err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}

	geometry, err := encodeGeometry(seg.Geometry)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", key, err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO route_segments (trip_id, from_stop_id, to_stop_id, geometry, duration_seconds, distance_meters, updated_at)
    VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
	ON CONFLICT (trip_id, from_stop_id, to_stop_id) DO UPDATE
	SET geometry = EXCLUDED.geometry,
		duration_seconds = EXCLUDED.duration_seconds,
		distance_meters = EXCLUDED.distance_meters,
		updated_at = EXCLUDED.updated_at;
	`, key.TripID, key.From, key.To, geometry, seg.LegDurationSeconds, seg.LegDistanceMeters, seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", key, err)
	}

	return nil
}
