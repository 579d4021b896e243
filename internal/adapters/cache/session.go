package cache

import (
	"context"
	"errors"
	"fmt"
	"trip-route-engine/internal/domain"

	"github.com/bluele/gcache"
)

// Session is the process-scoped cache shared by the geocoder and the route
// assembler for the lifetime of a session. Both caches are unbounded simple
// caches, so entries are never evicted. Concurrent writers to one key race;
// the last writer wins.
//
// Session also serves as the local fallback SegmentStore.
type Session struct {
	geocodes gcache.Cache
	segments gcache.Cache
}

func NewSession() *Session {
	return &Session{
		geocodes: gcache.New(0).Simple().Build(),
		segments: gcache.New(0).Simple().Build(),
	}
}

func (s *Session) Geocode(key string) (domain.Coordinates, bool) {
	v, err := s.geocodes.GetIFPresent(key)
	if err != nil {
		return domain.Coordinates{}, false
	}
	c, ok := v.(domain.Coordinates)
	return c, ok
}

func (s *Session) PutGeocode(key string, c domain.Coordinates) {
	_ = s.geocodes.Set(key, c)
}

func (s *Session) GeocodeCount() int {
	return s.geocodes.Len(true)
}

// Get looks up a segment under the local form of key.
func (s *Session) Get(_ context.Context, key domain.SegmentKey) (domain.RouteSegment, bool, error) {
	v, err := s.segments.GetIFPresent(key.Local())
	if errors.Is(err, gcache.KeyNotFoundError) {
		return domain.RouteSegment{}, false, nil
	}
	if err != nil {
		return domain.RouteSegment{}, false, fmt.Errorf("get session segment %s: %w", key.Local(), err)
	}
	seg, ok := v.(domain.RouteSegment)
	return seg, ok, nil
}

func (s *Session) Put(_ context.Context, key domain.SegmentKey, seg domain.RouteSegment) error {
	if err := s.segments.Set(key.Local(), seg); err != nil {
		return fmt.Errorf("put session segment %s: %w", key.Local(), err)
	}
	return nil
}
