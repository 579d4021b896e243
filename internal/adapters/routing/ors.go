package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/httpclient"
	"trip-route-engine/internal/platform/obs"
	"trip-route-engine/internal/ports"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Segments []struct {
				Duration float64 `json:"duration"`
				Distance float64 `json:"distance"`
			} `json:"segments"`
			Summary struct {
				Duration float64 `json:"duration"`
				Distance float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// ORSRouter implements RoutingService using the OpenRouteService directions endpoint.
type ORSRouter struct {
	client  *httpclient.Client
	baseURL string
	profile string
}

func NewORSRouter(client *httpclient.Client, apiKey string, baseURL string, profile string) (*ORSRouter, error) {
	if client == nil {
		return nil, errors.New("ORS router: http client is nil")
	}
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if profile == "" {
		profile = "driving-car"
	}

	return &ORSRouter{
		client:  client.WithHeader("Authorization", apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
	}, nil
}

func (o *ORSRouter) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ *ports.RouteResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{from.CoordsToList(), to.CoordsToList()},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.client.NewRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload), "application/json")
	})
	if err != nil {
		var se *httpclient.StatusError
		// ORS reports unroutable points as 404 (error code 2010).
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return nil, nil
	}

	f := dr.Features[0]
	geometry, err := lngLatToCoordinates(f.Geometry.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("ORS route: %w", err)
	}

	out := &ports.RouteResult{
		Geometry:        geometry,
		DurationSeconds: f.Properties.Summary.Duration,
		DistanceMeters:  f.Properties.Summary.Distance,
	}
	for _, s := range f.Properties.Segments {
		out.Legs = append(out.Legs, ports.RouteLeg{DurationSeconds: s.Duration, DistanceMeters: s.Distance})
	}

	return out, nil
}
