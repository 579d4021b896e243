package handlers

import (
	"context"
	"net/http"
	"strings"
	"trip-route-engine/internal/api/dto"
	"trip-route-engine/internal/domain"
)

type Resolver interface {
	Resolve(ctx context.Context, text string) (domain.Coordinates, bool)
}

type GeocodeHandler struct {
	Geocoder Resolver
}

// Lookup resolves ?q= through the geocoder. An unresolvable query is not an
// error; it returns resolved=false.
func (h *GeocodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, http.StatusBadRequest, "q is required")
		return
	}

	res := dto.GeocodeResponse{Query: q}
	if c, ok := h.Geocoder.Resolve(r.Context(), q); ok {
		res.Resolved = true
		res.Lat, res.Lng = &c.Lat, &c.Lng
	}

	writeJSON(w, r, http.StatusOK, res)
}
