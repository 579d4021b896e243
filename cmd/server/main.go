package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"trip-route-engine/internal/api"
	"trip-route-engine/internal/app"
	"trip-route-engine/internal/config"
	"trip-route-engine/internal/platform/obs"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ConfigFile string `short:"c" long:"config"    env:"TRIP_CONFIG"    description:"Path to YAML configuration file"`
	Addr       string `short:"a" long:"addr"      env:"TRIP_HTTP_ADDR" description:"Address to listen on (overrides config)"`
	LogLevel   string `short:"l" long:"log-level" env:"TRIP_LOG_LEVEL" description:"Log level (overrides config)"`
	Pretty     bool   `long:"pretty" description:"Human readable console logs"`
}

// main is the application composition root.
// It loads configuration, wires the engine and serves the HTTP surface.
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
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	obs.Setup(cfg.Log.Level, opts.Pretty || cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build engine")
	}
	defer engine.Close()

	router := api.NewRouter(api.Deps{
		Geocoder: engine.Geocoder,
		Renderer: engine.Renderer,
		POIs:     engine.POIs,
	})

	// Timeouts are tuned for cold-cache trip rendering (external API latency).
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		return
	}
	log.Info().Msg("server stopped")
}
