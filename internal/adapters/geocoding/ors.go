package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"trip-route-engine/internal/platform/httpclient"
	"trip-route-engine/internal/platform/obs"
	"trip-route-engine/internal/ports"
)

type orsGeocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// ORSGeocoder implements GeocodingService using OpenRouteService (/geocode/search).
type ORSGeocoder struct {
	client      *httpclient.Client
	baseURL     string
	countryCode string
}

func NewORSGeocoder(client *httpclient.Client, apiKey string, baseURL string, countryCode string) (*ORSGeocoder, error) {
	if client == nil {
		return nil, errors.New("ORS geocoder: http client is nil")
	}
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openrouteservice.org"
	}

	return &ORSGeocoder{
		client:      client.WithHeader("Authorization", apiKey),
		baseURL:     strings.TrimRight(baseURL, "/"),
		countryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
	}, nil
}

func (o *ORSGeocoder) Search(
	ctx context.Context,
	text string,
	limit int,
) (_ []ports.GeocodeResult, err error) {
	defer obs.Time(ctx, "ors.geocode.Search")(&err)

	if strings.TrimSpace(text) == "" {
		return nil, errors.New("ORS geocode: text must be non-empty")
	}
	if limit <= 0 {
		limit = 1
	}

	q := url.Values{}
	q.Set("text", text)
	q.Set("size", strconv.Itoa(limit))
	if o.countryCode != "" {
		q.Set("boundary.country", o.countryCode)
	}
	endpoint := o.baseURL + "/geocode/search?" + q.Encode()

	resp, err := o.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return o.client.NewRequest(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		return nil, fmt.Errorf("ORS geocode %q: execute request: %w", text, err)
	}
	defer resp.Body.Close()

	var decoded orsGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ORS geocode %q: decode response: %w", text, err)
	}

	out := make([]ports.GeocodeResult, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		coords := f.Geometry.Coordinates
		if len(coords) != 2 {
			return nil, fmt.Errorf("ORS geocode %q: invalid coordinate format", text)
		}

		// GeoJSON order is [lon, lat].
		out = append(out, ports.GeocodeResult{
			Lat:         coords[1],
			Lng:         coords[0],
			DisplayName: f.Properties.Label,
		})
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}
