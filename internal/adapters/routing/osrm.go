package routing

import (
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

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Legs []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
		} `json:"legs"`
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// OSRMRouter implements RoutingService against an OSRM /route/v1 endpoint.
type OSRMRouter struct {
	client  *httpclient.Client
	baseURL string
	profile string
}

func NewOSRMRouter(client *httpclient.Client, baseURL string, profile string) (*OSRMRouter, error) {
	if client == nil {
		return nil, errors.New("osrm router: http client is nil")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("osrm router: base url is empty")
	}
	if profile == "" {
		profile = "driving"
	}

	return &OSRMRouter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
	}, nil
}

// Route requests a single two-point route.
func (o *OSRMRouter) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ *ports.RouteResult, err error) {
	defer obs.Time(ctx, "osrm.Route")(&err)

	endpoint := fmt.Sprintf(
		"%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson&steps=false",
		o.baseURL, o.profile, from.Lng, from.Lat, to.Lng, to.Lat,
	)

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.client.NewRequest(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		var se *httpclient.StatusError
		// OSRM answers 400 with code NoRoute/NoSegment when points are unroutable.
		if errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, "NoRoute") {
			return nil, nil
		}
		return nil, fmt.Errorf("osrm route: execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("osrm route: decode response: %w", err)
	}

	if decoded.Code != "" && decoded.Code != "Ok" {
		if decoded.Code == "NoRoute" {
			return nil, nil
		}
		return nil, fmt.Errorf("osrm route: service code %q", decoded.Code)
	}

	if len(decoded.Routes) == 0 {
		return nil, nil
	}

	r := decoded.Routes[0]
	geometry, err := lngLatToCoordinates(r.Geometry.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("osrm route: %w", err)
	}

	out := &ports.RouteResult{
		Geometry:        geometry,
		DurationSeconds: r.Duration,
		DistanceMeters:  r.Distance,
	}
	for _, l := range r.Legs {
		out.Legs = append(out.Legs, ports.RouteLeg{DurationSeconds: l.Duration, DistanceMeters: l.Distance})
	}

	return out, nil
}
