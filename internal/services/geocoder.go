package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"trip-route-engine/internal/adapters/cache"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/metrics"
	"trip-route-engine/internal/ports"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

// sharedResolveTimeout bounds one candidate chain shared by concurrent callers.
const sharedResolveTimeout = 2 * time.Minute

// Geocoder resolves free-text stop locations into coordinates.
//
// Lookups are cache-first against the shared session cache, then the optional
// persistent store, then the geocoding service. Uncached text is tried as a
// fixed sequence of query candidates; the first parseable hit wins and is
// cached under the original text.
type Geocoder struct {
	service     ports.GeocodingService
	session     *cache.Session
	store       ports.GeocodeStore
	concurrency int
	group       singleflight.Group
}

type GeocoderOption func(*Geocoder)

// WithGeocodeStore layers a persistent store between the session cache and the service.
func WithGeocodeStore(store ports.GeocodeStore) GeocoderOption {
	return func(g *Geocoder) { g.store = store }
}

// WithGeocodeConcurrency bounds parallel resolutions in ResolveAll.
func WithGeocodeConcurrency(n int) GeocoderOption {
	return func(g *Geocoder) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func NewGeocoder(service ports.GeocodingService, session *cache.Session, opts ...GeocoderOption) *Geocoder {
	if session == nil {
		session = cache.NewSession()
	}
	g := &Geocoder{
		service:     service,
		session:     session,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve returns the coordinate for text; ok is false when every candidate
// failed. A failure is never cached, so the next pass tries again.
func (g *Geocoder) Resolve(ctx context.Context, text string) (domain.Coordinates, bool) {
	key := domain.GeocodeKey(text)
	if key == "" {
		return domain.Coordinates{}, false
	}

	if c, ok := g.session.Geocode(key); ok {
		metrics.GeocodeLookups.WithLabelValues("cache_hit").Inc()
		return c, true
	}

	// The shared chain outlives any single caller; each caller waits on its own ctx.
	ch := g.group.DoChan(key, func() (any, error) {
		if c, ok := g.session.Geocode(key); ok {
			return &c, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		return g.resolveUncached(shared, key), nil
	})

	select {
	case <-ctx.Done():
		return domain.Coordinates{}, false
	case res := <-ch:
		c, _ := res.Val.(*domain.Coordinates)
		if c == nil {
			return domain.Coordinates{}, false
		}
		return *c, true
	}
}

func (g *Geocoder) resolveUncached(ctx context.Context, key string) *domain.Coordinates {
	if g.store != nil {
		hits, err := g.store.GetMany(ctx, []string{key})
		if err != nil {
			log.Warn().Err(err).Str("query", key).Msg("geocode store read failed")
		} else if c, ok := hits[key]; ok && c.Valid() {
			g.session.PutGeocode(key, c)
			metrics.GeocodeLookups.WithLabelValues("cache_hit").Inc()
			return &c
		}
	}

	if g.service == nil {
		log.Warn().Str("query", key).Msg("no geocoding service configured")
		metrics.GeocodeLookups.WithLabelValues("unresolved").Inc()
		return nil
	}

	for i, candidate := range QueryCandidates(key) {
		if err := ctx.Err(); err != nil {
			log.Debug().Err(err).Str("query", key).Msg("geocode cancelled")
			break
		}

		results, err := g.service.Search(ctx, candidate, 1)
		if err != nil {
			metrics.GeocodeCalls.WithLabelValues("error").Inc()
			log.Debug().Err(err).Str("query", key).Str("candidate", candidate).Msg("geocode candidate failed")
			continue
		}
		if len(results) == 0 {
			metrics.GeocodeCalls.WithLabelValues("empty").Inc()
			continue
		}

		c := domain.Coordinates{Lat: results[0].Lat, Lng: results[0].Lng}
		if !c.Valid() {
			metrics.GeocodeCalls.WithLabelValues("invalid").Inc()
			continue
		}
		metrics.GeocodeCalls.WithLabelValues("ok").Inc()

		g.session.PutGeocode(key, c)
		if g.store != nil {
			if err := g.store.PutMany(ctx, map[string]domain.Coordinates{key: c}); err != nil {
				log.Warn().Err(err).Str("query", key).Msg("geocode store write failed")
			}
		}

		log.Debug().Str("query", key).Str("candidate", candidate).Int("attempt", i+1).Msg("geocoded")
		metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
		return &c
	}

	log.Warn().Str("query", key).Msg("no geocode candidate resolved")
	metrics.GeocodeLookups.WithLabelValues("unresolved").Inc()
	return nil
}

// ResolveAll geocodes every stop with bounded concurrency. The output keeps
// the input order; unresolved stops are returned with Resolved=false.
func (g *Geocoder) ResolveAll(ctx context.Context, stops []domain.Stop) []domain.PlottedStop {
	out := make([]domain.PlottedStop, len(stops))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, s := range stops {
		out[i] = domain.PlottedStop{Stop: s}
		eg.Go(func() error {
			c, ok := g.Resolve(ctx, s.LocationText)
			out[i].Coord = c
			out[i].Resolved = ok
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

var (
	dashVariants = strings.NewReplacer(
		"‐", "-", "‑", "-", "‒", "-", "–", "-",
		"—", "-", "―", "-", "−", "-", "﹘", "-",
		"﹣", "-", "－", "-",
	)
	spaceAroundComma = regexp.MustCompile(`\s*,\s*`)
	// Trailing "ST 12345[-6789][, anything]" or "12345[, anything]".
	trailingPostal = regexp.MustCompile(`(?:[\s,]+[A-Z]{2})?[\s,]+\d{4,6}(?:-\d{4})?(?:\s*,.*)?$`)
	// Trailing ", Country" or ", ST" segment.
	trailingSegment = regexp.MustCompile(`,\s*[^,\d]+$`)
)

// cleanLocation normalizes unicode compatibility forms and dash variants and
// collapses whitespace.
func cleanLocation(text string) string {
	s := norm.NFKC.String(text)
	s = dashVariants.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = spaceAroundComma.ReplaceAllString(s, ", ")
	return strings.Trim(s, " ,")
}

// stripTrailingRegion removes a trailing postal code (with an optional state
// prefix and anything after it); failing that, a trailing non-numeric segment
// when the text has at least three comma-separated parts.
func stripTrailingRegion(s string) string {
	if out := strings.TrimRight(trailingPostal.ReplaceAllString(s, ""), " ,"); out != s {
		return out
	}
	if strings.Count(s, ",") >= 2 {
		return strings.TrimRight(trailingSegment.ReplaceAllString(s, ""), " ,")
	}
	return s
}

// QueryCandidates returns the ordered, de-duplicated geocoding queries for text:
// cleaned original, hyphens as spaces, trailing region stripped, text before
// the first comma, text before the second comma.
func QueryCandidates(text string) []string {
	cleaned := cleanLocation(text)
	if cleaned == "" {
		return nil
	}

	parts := strings.Split(cleaned, ",")
	firstComma := strings.TrimSpace(parts[0])
	secondComma := ""
	if len(parts) >= 2 {
		secondComma = strings.TrimSpace(strings.Join(parts[:2], ","))
	}

	raw := []string{
		cleaned,
		strings.Join(strings.Fields(strings.ReplaceAll(cleaned, "-", " ")), " "),
		stripTrailingRegion(cleaned),
		firstComma,
		secondComma,
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
