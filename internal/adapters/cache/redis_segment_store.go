package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/obs"

	"github.com/redis/go-redis/v9"
)

type redisSegment struct {
	Geometry  string    `json:"geometry"`
	Duration  float64   `json:"duration_seconds"`
	Distance  float64   `json:"distance_meters"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisSegmentStore is a Redis-backed durable store for routed segments.
// Keys never expire; a re-fetch overwrites them.
type RedisSegmentStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisSegmentStore(client *redis.Client) *RedisSegmentStore {
	return &RedisSegmentStore{Client: client, Prefix: "segment"}
}

// key escapes each component so ids containing ':' cannot collide.
func (s *RedisSegmentStore) key(k domain.SegmentKey) string {
	return s.Prefix + ":" + url.QueryEscape(k.TripID) + ":" + url.QueryEscape(k.From) + ":" + url.QueryEscape(k.To)
}

func (s *RedisSegmentStore) Get(
	ctx context.Context,
	key domain.SegmentKey,
) (_ domain.RouteSegment, _ bool, err error) {
	defer obs.Time(ctx, "segment.redis.Get")(&err)

	if s.Client == nil {
		return domain.RouteSegment{}, false, errors.New("segment store: redis client is nil")
	}
	if err := validKey(key); err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment: %w", err)
	}

	raw, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RouteSegment{}, false, nil
	}
	if err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment %s: redis get: %w", key, err)
	}

	var rs redisSegment
	if err := json.Unmarshal(raw, &rs); err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment %s: decode: %w", key, err)
	}

	geometry, err := decodeGeometry(rs.Geometry)
	if err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get segment %s: %w", key, err)
	}

	return domain.RouteSegment{
		FromStopID:         key.From,
		ToStopID:           key.To,
		Geometry:           geometry,
		LegDurationSeconds: rs.Duration,
		LegDistanceMeters:  rs.Distance,
		UpdatedAt:          rs.UpdatedAt,
	}, true, nil
}

func (s *RedisSegmentStore) Put(ctx context.Context, key domain.SegmentKey, seg domain.RouteSegment) error {
	if s.Client == nil {
		return errors.New("segment store: redis client is nil")
	}
	if err := validKey(key); err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}

	geometry, err := encodeGeometry(seg.Geometry)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", key, err)
	}

	payload, err := json.Marshal(redisSegment{
		Geometry:  geometry,
		Duration:  seg.LegDurationSeconds,
		Distance:  seg.LegDistanceMeters,
		UpdatedAt: seg.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert segment %s: encode: %w", key, err)
	}

	if err := s.Client.Set(ctx, s.key(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("insert segment %s: redis set: %w", key, err)
	}

	return nil
}
