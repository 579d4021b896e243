package services

import (
	"context"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/metrics"
	"trip-route-engine/internal/platform/obs"
	"trip-route-engine/internal/ports"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Degrees within which two points count as the same location when anchoring
// segment geometry and de-duplicating stitch joins.
const coordTolerance = 1e-5

// RouteAssembler turns ordered, geocoded stops into a stitched path by
// routing each consecutive pair independently and caching the legs.
type RouteAssembler struct {
	router      ports.RoutingService
	durable     ports.SegmentStore
	local       ports.SegmentStore
	concurrency int
	maxAge      time.Duration
	now         func() time.Time
}

type AssemblerOption func(*RouteAssembler)

// WithDurableStore sets the store consulted first when a trip identity exists.
func WithDurableStore(store ports.SegmentStore) AssemblerOption {
	return func(a *RouteAssembler) { a.durable = store }
}

// WithRouteConcurrency bounds in-flight routing calls per assembly pass.
func WithRouteConcurrency(n int) AssemblerOption {
	return func(a *RouteAssembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithSegmentMaxAge makes cached segments older than d count as misses.
// Zero keeps segments forever.
func WithSegmentMaxAge(d time.Duration) AssemblerOption {
	return func(a *RouteAssembler) { a.maxAge = d }
}

func withClock(now func() time.Time) AssemblerOption {
	return func(a *RouteAssembler) { a.now = now }
}

// NewRouteAssembler builds an assembler; local is the session-scoped fallback store.
func NewRouteAssembler(router ports.RoutingService, local ports.SegmentStore, opts ...AssemblerOption) *RouteAssembler {
	a := &RouteAssembler{
		router:      router,
		local:       local,
		concurrency: 2,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type stopPair struct {
	from domain.PlottedStop
	to   domain.PlottedStop
}

// Assemble routes consecutive resolved stops. Stops must already be in trip
// order; unresolved stops are skipped. Per-pair failures are logged and leave
// a gap in the path; they are retried on the next call.
func (a *RouteAssembler) Assemble(ctx context.Context, tripID string, plotted []domain.PlottedStop) domain.AssembledRoute {
	var err error
	defer obs.Time(ctx, "route.Assemble")(&err)

	out := domain.AssembledRoute{LegAnnotations: map[string]domain.LegAnnotation{}}

	visible := make([]domain.PlottedStop, 0, len(plotted))
	for _, p := range plotted {
		if p.Resolved {
			visible = append(visible, p)
		}
	}
	if len(visible) < 2 {
		return out
	}

	pairs := make([]stopPair, 0, len(visible)-1)
	for i := 0; i+1 < len(visible); i++ {
		pairs = append(pairs, stopPair{from: visible[i], to: visible[i+1]})
	}

	segments := make([]*domain.RouteSegment, len(pairs))
	misses := make([]int, 0, len(pairs))
	for i, p := range pairs {
		if seg, ok := a.loadSegmentCached(ctx, a.key(tripID, p), p); ok {
			segments[i] = &seg
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) > 0 && a.router != nil {
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		for _, i := range misses {
			eg.Go(func() error {
				segments[i] = a.fetchSegment(egCtx, tripID, pairs[i])
				return nil
			})
		}
		_ = eg.Wait()
	}

	out.Runs = stitch(segments)
	for i, seg := range segments {
		if seg == nil {
			continue
		}
		out.LegAnnotations[pairs[i].to.ID] = domain.LegAnnotation{
			DurationSeconds: seg.LegDurationSeconds,
			DistanceMeters:  seg.LegDistanceMeters,
		}
	}

	return out
}

func (a *RouteAssembler) key(tripID string, p stopPair) domain.SegmentKey {
	return domain.SegmentKey{TripID: tripID, From: p.from.ID, To: p.to.ID}
}

// loadSegmentCached checks the durable store (only with a trip identity) and
// then the local fallback store.
func (a *RouteAssembler) loadSegmentCached(ctx context.Context, key domain.SegmentKey, p stopPair) (domain.RouteSegment, bool) {
	if key.TripID != "" && a.durable != nil {
		seg, ok, err := a.durable.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("segment", key.String()).Msg("durable segment read failed")
		} else if ok && a.usable(seg, p) {
			metrics.SegmentCacheHits.WithLabelValues("durable").Inc()
			return seg, true
		}
	}

	if a.local != nil {
		seg, ok, err := a.local.Get(ctx, key.Local())
		if err != nil {
			log.Warn().Err(err).Str("segment", key.Local().String()).Msg("local segment read failed")
		} else if ok && a.usable(seg, p) {
			metrics.SegmentCacheHits.WithLabelValues("local").Inc()
			return seg, true
		}
	}

	return domain.RouteSegment{}, false
}

// usable rejects cached segments that are too old or no longer anchored at the
// pair's current coordinates (the stop's location text was edited).
func (a *RouteAssembler) usable(seg domain.RouteSegment, p stopPair) bool {
	if len(seg.Geometry) < 2 {
		return false
	}
	if a.maxAge > 0 && a.now().Sub(seg.UpdatedAt) > a.maxAge {
		return false
	}
	first, last := seg.Geometry[0], seg.Geometry[len(seg.Geometry)-1]
	return first.Near(p.from.Coord, coordTolerance) && last.Near(p.to.Coord, coordTolerance)
}

func (a *RouteAssembler) fetchSegment(ctx context.Context, tripID string, p stopPair) *domain.RouteSegment {
	key := a.key(tripID, p)

	start := time.Now()
	res, err := a.router.Route(ctx, p.from.Coord, p.to.Coord)
	metrics.RouteCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RouteCalls.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("segment", key.String()).Msg("routing failed")
		return nil
	}
	if res == nil || len(res.Geometry) == 0 {
		metrics.RouteCalls.WithLabelValues("no_route").Inc()
		log.Info().Str("segment", key.String()).Msg("no route between stops")
		return nil
	}
	metrics.RouteCalls.WithLabelValues("ok").Inc()

	seg := domain.RouteSegment{
		FromStopID:         p.from.ID,
		ToStopID:           p.to.ID,
		Geometry:           anchorGeometry(res.Geometry, p.from.Coord, p.to.Coord),
		LegDurationSeconds: res.DurationSeconds,
		LegDistanceMeters:  res.DistanceMeters,
		UpdatedAt:          a.now().UTC(),
	}
	if len(res.Legs) > 0 {
		seg.LegDurationSeconds = res.Legs[0].DurationSeconds
		seg.LegDistanceMeters = res.Legs[0].DistanceMeters
	}

	a.persist(ctx, key, seg)
	return &seg
}

// persist writes to the durable store, falling back to the local store when
// the durable write fails or no trip identity exists.
func (a *RouteAssembler) persist(ctx context.Context, key domain.SegmentKey, seg domain.RouteSegment) {
	if key.TripID != "" && a.durable != nil {
		err := a.durable.Put(ctx, key, seg)
		if err == nil {
			return
		}
		metrics.SegmentWriteErrors.WithLabelValues("durable").Inc()
		log.Warn().Err(err).Str("segment", key.String()).Msg("durable segment write failed, using local store")
	}

	if a.local == nil {
		return
	}
	if err := a.local.Put(ctx, key.Local(), seg); err != nil {
		metrics.SegmentWriteErrors.WithLabelValues("local").Inc()
		log.Error().Err(err).Str("segment", key.String()).Msg("segment not persisted")
	}
}

// anchorGeometry makes the geometry start at from and end at to.
func anchorGeometry(g []domain.Coordinates, from, to domain.Coordinates) []domain.Coordinates {
	out := make([]domain.Coordinates, 0, len(g)+2)
	if !g[0].Near(from, coordTolerance) {
		out = append(out, from)
	}
	out = append(out, g...)
	if !out[len(out)-1].Near(to, coordTolerance) {
		out = append(out, to)
	}
	return out
}

// stitch concatenates segment geometries in pair order. A nil segment closes
// the current run. Within a run, a leg whose first point coincides with the
// previous leg's last point drops that point.
func stitch(segments []*domain.RouteSegment) [][]domain.Coordinates {
	var runs [][]domain.Coordinates
	var cur []domain.Coordinates

	for _, seg := range segments {
		if seg == nil || len(seg.Geometry) == 0 {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}

		g := seg.Geometry
		if len(cur) > 0 && cur[len(cur)-1].Near(g[0], coordTolerance) {
			g = g[1:]
		}
		cur = append(cur, g...)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}

	return runs
}
