package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/metrics"
	"trip-route-engine/internal/platform/obs"
	"trip-route-engine/internal/ports"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog/log"
)

const (
	POIStatusIdle       = "idle"
	POIStatusOK         = "ok"
	POIStatusZoomTooLow = "zoom too low"
	POIStatusNoOverlays = "no overlays active"
)

// Overlay category mapped onto an OpenStreetMap tag key and its values.
type overlayCategory struct {
	Key    string
	Values []string
}

var overlayCatalog = map[string]overlayCategory{
	"camping":     {Key: "tourism", Values: []string{"camp_site", "caravan_site"}},
	"lodging":     {Key: "tourism", Values: []string{"hotel", "motel", "guest_house", "hostel", "alpine_hut"}},
	"viewpoint":   {Key: "tourism", Values: []string{"viewpoint"}},
	"fuel":        {Key: "amenity", Values: []string{"fuel"}},
	"ev_charging": {Key: "amenity", Values: []string{"charging_station"}},
	"water":       {Key: "amenity", Values: []string{"drinking_water", "water_point"}},
	"toilets":     {Key: "amenity", Values: []string{"toilets"}},
	"ferry":       {Key: "amenity", Values: []string{"ferry_terminal"}},
	"supermarket": {Key: "shop", Values: []string{"supermarket", "convenience"}},
}

// OverlayCategories lists the known overlay names in sorted order.
func OverlayCategories() []string {
	out := make([]string, 0, len(overlayCatalog))
	for name := range overlayCatalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OverlayFilters is the set of toggled overlays. Subtypes optionally narrows
// a category to some of its values.
type OverlayFilters struct {
	Categories []string            `json:"categories"`
	Subtypes   map[string][]string `json:"subtypes,omitempty"`
}

// Clauses maps the filters onto query clauses, one per known active category.
// Unknown categories and subtypes are ignored.
func (f OverlayFilters) Clauses() []ports.POIClause {
	seen := map[string]struct{}{}
	var out []ports.POIClause
	for _, name := range f.Categories {
		cat, ok := overlayCatalog[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		values := cat.Values
		if sub := f.Subtypes[name]; len(sub) > 0 {
			narrowed := make([]string, 0, len(sub))
			for _, v := range sub {
				if slices.Contains(cat.Values, v) && !slices.Contains(narrowed, v) {
					narrowed = append(narrowed, v)
				}
			}
			if len(narrowed) > 0 {
				values = narrowed
			}
		}

		out = append(out, ports.POIClause{Category: name, Key: cat.Key, Values: values})
	}
	return out
}

type poiRequest struct {
	viewport domain.Viewport
	clauses  []ports.POIClause
}

// POIFetcher keeps the POI set for the latest settled viewport.
//
// Viewport events are debounced; only the last one in the window triggers a
// query. Responses belonging to a superseded generation are dropped.
type POIFetcher struct {
	source   ports.POISource
	minZoom  float64
	debounce time.Duration
	limit    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	pending   poiRequest
	set       domain.POISet
	listeners []func(domain.POISet)
	closed    bool
}

type POIFetcherOption func(*POIFetcher)

func WithPOIMinZoom(z float64) POIFetcherOption {
	return func(f *POIFetcher) { f.minZoom = z }
}

func WithPOIDebounce(d time.Duration) POIFetcherOption {
	return func(f *POIFetcher) {
		if d >= 0 {
			f.debounce = d
		}
	}
}

func WithPOILimit(n int) POIFetcherOption {
	return func(f *POIFetcher) {
		if n > 0 {
			f.limit = n
		}
	}
}

func NewPOIFetcher(source ports.POISource, opts ...POIFetcherOption) *POIFetcher {
	ctx, cancel := context.WithCancel(context.Background())
	f := &POIFetcher{
		source:   source,
		minZoom:  11,
		debounce: 400 * time.Millisecond,
		limit:    300,
		ctx:      ctx,
		cancel:   cancel,
		set:      domain.POISet{POIs: []domain.POI{}, Status: POIStatusIdle},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnViewportSettled records a settled viewport. Zoom and overlay gating apply
// immediately; otherwise a fetch is scheduled after the debounce delay,
// replacing any fetch still waiting.
func (f *POIFetcher) OnViewportSettled(vp domain.Viewport, filters OverlayFilters) {
	clauses := filters.Clauses()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.gen++
	gen := f.gen
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}

	var status string
	switch {
	case vp.Zoom < f.minZoom:
		status = POIStatusZoomTooLow
	case len(clauses) == 0:
		status = POIStatusNoOverlays
	case !vp.Bounds.Valid():
		status = "error: invalid bounds"
	}
	if status != "" {
		f.replaceLocked(nil, status)
		snap, listeners := f.snapshotLocked()
		f.mu.Unlock()

		metrics.POIFetches.WithLabelValues(outcomeForStatus(status)).Inc()
		log.Debug().Float64("zoom", vp.Zoom).Str("status", status).Msg("poi fetch skipped")
		notify(listeners, snap)
		return
	}

	f.pending = poiRequest{viewport: vp, clauses: clauses}
	f.timer = time.AfterFunc(f.debounce, func() { f.fire(gen) })
	f.mu.Unlock()
}

func (f *POIFetcher) fire(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	req := f.pending
	f.wg.Add(1)
	f.mu.Unlock()
	defer f.wg.Done()

	pois, err := f.fetch(f.ctx, req)

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		metrics.POIFetches.WithLabelValues("stale").Inc()
		log.Debug().Uint64("gen", gen).Msg("discarding superseded poi response")
		return
	}
	if err != nil {
		f.replaceLocked(nil, "error: "+err.Error())
	} else {
		f.replaceLocked(pois, POIStatusOK)
	}
	snap, listeners := f.snapshotLocked()
	f.mu.Unlock()

	if err != nil {
		metrics.POIFetches.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("poi fetch failed")
	} else {
		metrics.POIFetches.WithLabelValues("ok").Inc()
	}
	notify(listeners, snap)
}

func (f *POIFetcher) fetch(ctx context.Context, req poiRequest) (_ []domain.POI, err error) {
	defer obs.Time(ctx, "poi.fetch")(&err)

	if f.source == nil {
		return nil, fmt.Errorf("poi fetch: no source configured")
	}

	elements, err := f.source.Query(ctx, ports.POIQuery{
		Bounds:  req.viewport.Bounds,
		Clauses: req.clauses,
		Limit:   f.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("poi fetch: %w", err)
	}

	pois := make([]domain.POI, 0, len(elements))
	for _, el := range elements {
		c, ok := elementCoordinate(el)
		if !ok {
			continue
		}
		pois = append(pois, domain.POI{
			ID:       el.ID,
			Lat:      c.Lat,
			Lng:      c.Lng,
			Name:     el.Tags["name"],
			Category: categorize(el.Tags, req.clauses),
		})
		if len(pois) == f.limit {
			break
		}
	}
	return pois, nil
}

// elementCoordinate prefers the element's own point, then the center the
// source computed, then the planar centroid of its geometry.
func elementCoordinate(el ports.POIElement) (domain.Coordinates, bool) {
	switch {
	case el.Point != nil && el.Point.Valid():
		return *el.Point, true
	case el.Center != nil && el.Center.Valid():
		return *el.Center, true
	case len(el.Geometry) == 0:
		return domain.Coordinates{}, false
	}

	ls := make(orb.LineString, 0, len(el.Geometry))
	for _, c := range el.Geometry {
		ls = append(ls, orb.Point{c.Lng, c.Lat})
	}

	var g orb.Geometry = ls
	if len(ls) >= 4 && orb.Ring(ls).Closed() {
		g = orb.Polygon{orb.Ring(ls)}
	}
	if len(ls) == 1 {
		g = ls[0]
	}

	p, _ := planar.CentroidArea(g)
	c := domain.Coordinates{Lat: p.Lat(), Lng: p.Lon()}
	return c, c.Valid()
}

func categorize(tags map[string]string, clauses []ports.POIClause) string {
	for _, cl := range clauses {
		v, ok := tags[cl.Key]
		if !ok {
			continue
		}
		if len(cl.Values) == 0 || slices.Contains(cl.Values, v) {
			return cl.Category
		}
	}
	return "other"
}

func (f *POIFetcher) replaceLocked(pois []domain.POI, status string) {
	if pois == nil {
		pois = []domain.POI{}
	}
	f.set = domain.POISet{POIs: pois, Status: status, UpdatedAt: time.Now().UTC()}
}

func (f *POIFetcher) snapshotLocked() (domain.POISet, []func(domain.POISet)) {
	snap := f.set
	snap.POIs = slices.Clone(f.set.POIs)
	return snap, slices.Clone(f.listeners)
}

// Snapshot returns a copy of the current POI set.
func (f *POIFetcher) Snapshot() domain.POISet {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, _ := f.snapshotLocked()
	return snap
}

// OnChange registers fn to receive every replacement of the POI set.
func (f *POIFetcher) OnChange(fn func(domain.POISet)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Close cancels any pending or in-flight fetch and waits for it to return.
func (f *POIFetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
}

func notify(listeners []func(domain.POISet), snap domain.POISet) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func outcomeForStatus(status string) string {
	switch status {
	case POIStatusZoomTooLow:
		return "zoom_too_low"
	case POIStatusNoOverlays:
		return "no_overlays"
	default:
		return "error"
	}
}
