package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"
)

// SQLite backed durable store for routed segments.
type SqliteSegmentStore struct {
	DB *sql.DB
}

func NewSqliteSegmentStore(db *sql.DB) *SqliteSegmentStore {
	return &SqliteSegmentStore{DB: db}
}

func (s *SqliteSegmentStore) Get(
	ctx context.Context,
	key domain.SegmentKey,
) (_ domain.RouteSegment, _ bool, err error) {
	defer obs.Time(ctx, "segment.sqlite.Get")(&err)

	if s.DB == nil {
		return domain.RouteSegment{}, false, errors.New("segment store: db is nil")
	}
	if err := validKey(key); err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment: %w", err)
	}

	q := `
	SELECT
        geometry,
        duration_seconds,
        distance_meters,
        updated_at
    FROM route_segments
    WHERE trip_id = ?
        AND from_stop_id = ?
        AND to_stop_id = ?;
	`

	var geometry string
	var updatedAt int64
	seg := domain.RouteSegment{FromStopID: key.From, ToStopID: key.To}
	err = s.DB.QueryRowContext(ctx, q, key.TripID, key.From, key.To).
		Scan(&geometry, &seg.LegDurationSeconds, &seg.LegDistanceMeters, &updatedAt)
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
	seg.UpdatedAt = time.Unix(0, updatedAt).UTC()

	return seg, true, nil
}

func (s *SqliteSegmentStore) Put(ctx context.Context, key domain.SegmentKey, seg domain.RouteSegment) error {
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
	INSERT OR REPLACE INTO route_segments (
        trip_id,
        from_stop_id,
        to_stop_id,
        geometry,
        duration_seconds,
        distance_meters,
        updated_at
    )
    VALUES (?, ?, ?, ?, ?, ?, ?);
	`, key.TripID, key.From, key.To, geometry, seg.LegDurationSeconds, seg.LegDistanceMeters, seg.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", key, err)
	}

	return nil
}
