package main

import (
	"context"
	"database/sql"
	"os"
	"time"
	"trip-route-engine/internal/adapters/repositories"
	"trip-route-engine/internal/app"
	"trip-route-engine/internal/config"
	"trip-route-engine/internal/platform/db"
	"trip-route-engine/internal/platform/obs"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" env:"TRIP_CONFIG" description:"Path to YAML configuration file"`
	Trip       string `short:"t" long:"trip"   description:"Trip JSON file whose segments are fetched into the durable store"`
	Pretty     bool   `long:"pretty" description:"Human readable console logs"`
}

// dbtool initializes the durable store schema and optionally warms the
// segment cache for one trip.
func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		obs.Setup("info", opts.Pretty)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	obs.Setup(cfg.Log.Level, opts.Pretty || cfg.Log.Pretty)

	if err := initSchema(cfg.Store); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}

	if opts.Trip != "" {
		if err := warmTrip(cfg, opts.Trip); err != nil {
			log.Fatal().Err(err).Msg("warming trip failed")
		}
	}
}

func initSchema(sc config.StoreConfig) error {
	var (
		conn   *sql.DB
		err    error
		initFn func(*sql.DB) error
	)

	switch sc.Backend {
	case "sqlite":
		conn, err = db.OpenSqlite(sc.SqlitePath)
		initFn = repositories.InitSchema
	case "postgres":
		conn, err = db.Open(sc.DatabaseURL)
		initFn = repositories.InitPostgresSchema
	default:
		log.Info().Str("backend", sc.Backend).Msg("no SQL schema to initialize")
		return nil
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info().Str("backend", sc.Backend).Msg("initializing database schema")
	if err := initFn(conn); err != nil {
		return err
	}
	log.Info().Msg("schema ready")
	return nil
}

func warmTrip(cfg *config.Config, path string) error {
	tripID, stops, err := repositories.LoadTripJSON(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	engine, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	view, err := engine.Renderer.Render(ctx, tripID, stops)
	if err != nil {
		return err
	}

	plotted := 0
	for _, s := range view.Stops {
		if s.Plotted {
			plotted++
		}
	}
	log.Info().
		Str("trip_id", tripID).
		Int("stops", len(view.Stops)).
		Int("plotted", plotted).
		Int("runs", len(view.Runs)).
		Float64("distance_m", view.TotalDistanceMeters).
		Msg("trip warmed")
	return nil
}
