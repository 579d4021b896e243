package services

import (
	"context"
	"errors"
	"sync"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/ports"
)

type stubGeocoder struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]domain.Coordinates
}

func (s *stubGeocoder) Search(_ context.Context, text string, _ int) ([]ports.GeocodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	c, ok := s.answers[text]
	if !ok {
		return nil, nil
	}
	return []ports.GeocodeResult{{Lat: c.Lat, Lng: c.Lng, DisplayName: text}}, nil
}

func (s *stubGeocoder) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type routeCall struct {
	from domain.Coordinates
	to   domain.Coordinates
}

// stubRouter answers two-point routes from a table keyed by endpoint pair.
// Pairs present with a nil result mean no route; pairs in fail return an error.
type stubRouter struct {
	mu     sync.Mutex
	calls  []routeCall
	routes map[routeCall]*ports.RouteResult
	fail   map[routeCall]bool
}

func (s *stubRouter) Route(_ context.Context, from, to domain.Coordinates) (*ports.RouteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := routeCall{from: from, to: to}
	s.calls = append(s.calls, k)
	if s.fail[k] {
		return nil, errors.New("upstream 502")
	}
	return s.routes[k], nil
}

func (s *stubRouter) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// failingStore is a SegmentStore whose reads miss and writes fail.
type failingStore struct {
	mu     sync.Mutex
	writes int
}

func (f *failingStore) Get(context.Context, domain.SegmentKey) (domain.RouteSegment, bool, error) {
	return domain.RouteSegment{}, false, errors.New("store unavailable")
}

func (f *failingStore) Put(context.Context, domain.SegmentKey, domain.RouteSegment) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	return errors.New("store unavailable")
}

type memGeocodeStore struct {
	mu   sync.Mutex
	data map[string]domain.Coordinates
}

func (m *memGeocodeStore) GetMany(_ context.Context, keys []string) (map[string]domain.Coordinates, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domain.Coordinates{}
	for _, k := range keys {
		if c, ok := m.data[k]; ok {
			out[k] = c
		}
	}
	return out, nil
}

func (m *memGeocodeStore) PutMany(_ context.Context, results map[string]domain.Coordinates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]domain.Coordinates{}
	}
	for k, c := range results {
		m.data[k] = c
	}
	return nil
}

func plotted(id string, lat, lng float64) domain.PlottedStop {
	return domain.PlottedStop{
		Stop:     domain.Stop{ID: id, LocationText: id, Type: domain.StopRoofed},
		Coord:    domain.Coordinates{Lat: lat, Lng: lng},
		Resolved: true,
	}
}

func pt(lat, lng float64) domain.Coordinates {
	return domain.Coordinates{Lat: lat, Lng: lng}
}

// gatedGeocoder blocks every search until release is closed, then answers
// with coord unless the search context was cancelled.
type gatedGeocoder struct {
	started chan struct{}
	release chan struct{}
	coord   domain.Coordinates

	mu    sync.Mutex
	calls int
}

func (g *gatedGeocoder) Search(ctx context.Context, _ string, _ int) ([]ports.GeocodeResult, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		close(g.started)
	}

	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []ports.GeocodeResult{{Lat: g.coord.Lat, Lng: g.coord.Lng}}, nil
}

func (g *gatedGeocoder) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
