// Package app is the composition root shared by the binaries. It wires
// concrete adapters behind ports according to the loaded configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"trip-route-engine/internal/adapters/cache"
	"trip-route-engine/internal/adapters/geocoding"
	"trip-route-engine/internal/adapters/overpass"
	"trip-route-engine/internal/adapters/repositories"
	"trip-route-engine/internal/adapters/routing"
	"trip-route-engine/internal/config"
	"trip-route-engine/internal/platform/db"
	"trip-route-engine/internal/platform/httpclient"
	"trip-route-engine/internal/ports"
	"trip-route-engine/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type App struct {
	Session   *cache.Session
	Geocoder  *services.Geocoder
	Assembler *services.RouteAssembler
	Renderer  *services.TripRenderer
	POIs      *services.POIFetcher
	Fly       *services.FlyController

	closers []func() error
}

// Build constructs every service. The returned App must be closed.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Session: cache.NewSession()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	client := httpclient.New(httpclient.Options{
		Timeout:     cfg.Outbound.Timeout,
		MaxAttempts: cfg.Outbound.MaxAttempts,
		Backoff:     cfg.Outbound.Backoff,
		UserAgent:   cfg.Outbound.UserAgent,
	})

	geocoder, err := newGeocodingService(cfg, client.WithMinInterval(cfg.Geocode.MinInterval))
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	router, err := newRoutingService(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	poiSource, err := overpass.NewClient(client, cfg.POI.BaseURL, cfg.POI.Timeout)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	segments, geocodes, err := a.openStores(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	geoOpts := []services.GeocoderOption{services.WithGeocodeConcurrency(cfg.Geocode.Concurrency)}
	if geocodes != nil {
		geoOpts = append(geoOpts, services.WithGeocodeStore(geocodes))
	}
	a.Geocoder = services.NewGeocoder(geocoder, a.Session, geoOpts...)

	asmOpts := []services.AssemblerOption{
		services.WithRouteConcurrency(cfg.Route.Concurrency),
		services.WithSegmentMaxAge(cfg.Route.SegmentMaxAge),
	}
	if segments != nil {
		asmOpts = append(asmOpts, services.WithDurableStore(segments))
	}
	a.Assembler = services.NewRouteAssembler(router, a.Session, asmOpts...)
	a.Renderer = services.NewTripRenderer(a.Geocoder, a.Assembler)

	a.POIs = services.NewPOIFetcher(poiSource,
		services.WithPOIMinZoom(cfg.POI.MinZoom),
		services.WithPOIDebounce(cfg.POI.Debounce),
		services.WithPOILimit(cfg.POI.Limit),
	)
	a.closers = append(a.closers, func() error { a.POIs.Close(); return nil })

	a.Fly = services.NewFlyController(
		services.WithFlyTick(cfg.Fly.Tick),
		services.WithFlyTimeout(cfg.Fly.Timeout),
		services.WithMinZoomByType(cfg.Fly.MinZoomByType),
	)

	log.Info().
		Str("geocoder", cfg.Geocode.Provider).
		Str("router", cfg.Route.Provider).
		Str("store", cfg.Store.Backend).
		Msg("engine ready")

	return a, nil
}

func newGeocodingService(cfg *config.Config, client *httpclient.Client) (ports.GeocodingService, error) {
	switch cfg.Geocode.Provider {
	case "ors":
		return geocoding.NewORSGeocoder(client, cfg.Outbound.ORSAPIKey, cfg.Geocode.BaseURL, cfg.Geocode.CountryCode)
	default:
		return geocoding.NewNominatimGeocoder(client, cfg.Geocode.BaseURL, cfg.Geocode.CountryCode)
	}
}

func newRoutingService(cfg *config.Config, client *httpclient.Client) (ports.RoutingService, error) {
	switch cfg.Route.Provider {
	case "ors":
		return routing.NewORSRouter(client, cfg.Outbound.ORSAPIKey, cfg.Route.BaseURL, cfg.Route.Profile)
	default:
		return routing.NewOSRMRouter(client, cfg.Route.BaseURL, cfg.Route.Profile)
	}
}

// openStores opens the durable segment store and, for SQL backends, the
// optional persistent geocode store. Backend "none" returns nil stores.
func (a *App) openStores(ctx context.Context, sc config.StoreConfig) (ports.SegmentStore, ports.GeocodeStore, error) {
	switch sc.Backend {
	case "sqlite":
		conn, err := db.OpenSqlite(sc.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := repositories.InitSchema(conn); err != nil {
			return nil, nil, err
		}
		return cache.NewSqliteSegmentStore(conn), sqlGeocodeStore(sc, conn, cache.NewSqliteGeocodeCache), nil

	case "postgres":
		conn, err := db.Open(sc.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := repositories.InitPostgresSchema(conn); err != nil {
			return nil, nil, err
		}
		return cache.NewSQLSegmentStore(conn), sqlGeocodeStore(sc, conn, cache.NewSQLGeocodeCache), nil

	case "redis":
		opts, err := redis.ParseURL(sc.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis: parse url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The assembler falls back to the session store on every failed call.
			log.Warn().Err(err).Msg("redis unreachable at startup, segments will use the session store until it recovers")
		}
		return cache.NewRedisSegmentStore(rdb), nil, nil
	}

	return nil, nil, nil
}

func sqlGeocodeStore[T ports.GeocodeStore](sc config.StoreConfig, conn *sql.DB, newStore func(*sql.DB) T) ports.GeocodeStore {
	if !sc.PersistGeocodes {
		return nil
	}
	return newStore(conn)
}

// Close releases stores and stops background work, in reverse build order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
