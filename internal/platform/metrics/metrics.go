package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Geocoder resolutions by outcome: cache_hit, resolved, unresolved.
	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_geocode_lookups_total",
		Help: "Geocoder resolutions by outcome",
	}, []string{"outcome"})

	// Outbound geocoding calls, one per candidate tried.
	GeocodeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_geocode_calls_total",
		Help: "Outbound geocoding calls by outcome",
	}, []string{"outcome"})

	// Segment cache hits by store: durable, local.
	SegmentCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_segment_cache_hits_total",
		Help: "Route segment cache hits by store",
	}, []string{"store"})

	// Outbound routing calls by outcome: ok, no_route, error.
	RouteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_route_calls_total",
		Help: "Outbound two-point routing calls by outcome",
	}, []string{"outcome"})

	RouteCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trip_route_call_duration_seconds",
		Help:    "Latency of outbound routing calls",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6.4s
	})

	// Segment persistence failures by store.
	SegmentWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_segment_write_errors_total",
		Help: "Failed segment cache writes by store",
	}, []string{"store"})

	// POI fetch cycles by outcome: ok, error, zoom_too_low, no_overlays, stale.
	POIFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_poi_fetches_total",
		Help: "POI fetch cycles by outcome",
	}, []string{"outcome"})

	// Fly requests by terminal state.
	FlyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_fly_requests_total",
		Help: "Fly requests by terminal state",
	}, []string{"state"})

	FlyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trip_fly_queue_depth",
		Help: "Fly requests waiting or in flight",
	})
)
