package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"trip-route-engine/internal/api/dto"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/services"

	"github.com/rs/zerolog/log"
)

type Renderer interface {
	Render(ctx context.Context, tripID string, stops []domain.Stop) (domain.TripView, error)
}

type TripHandler struct {
	Renderer Renderer
}

// Route geocodes and routes the posted stops of a trip.
func (h *TripHandler) Route(w http.ResponseWriter, r *http.Request) {
	view, ok := h.render(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewRouteResponse(view))
}

// GeoJSON renders the same trip as a FeatureCollection.
func (h *TripHandler) GeoJSON(w http.ResponseWriter, r *http.Request) {
	view, ok := h.render(w, r)
	if !ok {
		return
	}

	body, err := services.TripGeoJSON(view).MarshalJSON()
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("trip_id", view.TripID).Msg("geojson encode failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *TripHandler) render(w http.ResponseWriter, r *http.Request) (domain.TripView, bool) {
	if !allowMethod(w, r, http.MethodPost) {
		return domain.TripView{}, false
	}

	tripID := strings.TrimSpace(r.PathValue("tripID"))
	if tripID == domain.LocalTripID {
		tripID = ""
	}

	var req dto.TripRequest
	if !decodeJSON(w, r, &req) {
		return domain.TripView{}, false
	}

	stops, err := req.ToDomain()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return domain.TripView{}, false
	}

	view, err := h.Renderer.Render(r.Context(), tripID, stops)
	if errors.Is(err, services.ErrDuplicateStopID) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return domain.TripView{}, false
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("trip_id", tripID).Msg("render trip failed")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return domain.TripView{}, false
	}

	return view, true
}
