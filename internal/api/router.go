package api

import (
	"net/http"
	"trip-route-engine/internal/api/handlers"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Geocoder handlers.Resolver
	Renderer handlers.Renderer
	POIs     handlers.POIService
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	geoHandler := &handlers.GeocodeHandler{Geocoder: deps.Geocoder}
	tripHandler := &handlers.TripHandler{Renderer: deps.Renderer}
	poiHandler := &handlers.POIHandler{Fetcher: deps.POIs}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/geocode", geoHandler.Lookup)
	mux.HandleFunc("/trips/{tripID}/route", tripHandler.Route)
	mux.HandleFunc("/trips/{tripID}/geojson", tripHandler.GeoJSON)
	mux.HandleFunc("/viewport", poiHandler.Viewport)
	mux.HandleFunc("/pois", poiHandler.List)
	mux.HandleFunc("/pois/categories", poiHandler.Categories)
	mux.Handle("/metrics", promhttp.Handler())

	return requestIDMiddleware(loggingMiddleware(mux))
}
