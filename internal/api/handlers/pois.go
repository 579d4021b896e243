package handlers

import (
	"net/http"
	"trip-route-engine/internal/api/dto"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/services"
)

type POIService interface {
	OnViewportSettled(vp domain.Viewport, filters services.OverlayFilters)
	Snapshot() domain.POISet
}

type POIHandler struct {
	Fetcher POIService
}

// Viewport reports a settled map viewport. The fetch happens asynchronously;
// the response carries the set as it stands right after gating.
func (h *POIHandler) Viewport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.ViewportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Bounds.Valid() {
		writeError(w, r, http.StatusBadRequest, "bounds are invalid")
		return
	}

	h.Fetcher.OnViewportSettled(
		domain.Viewport{Bounds: req.Bounds, Zoom: req.Zoom},
		services.OverlayFilters{Categories: req.Overlays, Subtypes: req.Subtypes},
	)

	writeJSON(w, r, http.StatusAccepted, dto.NewListPOIsResponse(h.Fetcher.Snapshot()))
}

func (h *POIHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewListPOIsResponse(h.Fetcher.Snapshot()))
}

// Categories lists the overlay names the fetcher understands.
func (h *POIHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"categories": services.OverlayCategories()})
}
