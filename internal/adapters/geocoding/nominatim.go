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

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimGeocoder implements GeocodingService against a Nominatim /search endpoint.
type NominatimGeocoder struct {
	client      *httpclient.Client
	baseURL     string
	countryCode string
}

func NewNominatimGeocoder(client *httpclient.Client, baseURL string, countryCode string) (*NominatimGeocoder, error) {
	if client == nil {
		return nil, errors.New("nominatim geocoder: http client is nil")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("nominatim geocoder: base url is empty")
	}

	return &NominatimGeocoder{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		countryCode: strings.ToLower(strings.TrimSpace(countryCode)),
	}, nil
}

func (n *NominatimGeocoder) Search(
	ctx context.Context,
	text string,
	limit int,
) (_ []ports.GeocodeResult, err error) {
	defer obs.Time(ctx, "nominatim.Search")(&err)

	if strings.TrimSpace(text) == "" {
		return nil, errors.New("nominatim search: text must be non-empty")
	}
	if limit <= 0 {
		limit = 1
	}

	q := url.Values{}
	q.Set("q", text)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(limit))
	if n.countryCode != "" {
		q.Set("countrycodes", n.countryCode)
	}
	endpoint := n.baseURL + "/search?" + q.Encode()

	resp, err := n.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return n.client.NewRequest(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		return nil, fmt.Errorf("nominatim search %q: %w", text, err)
	}
	defer resp.Body.Close()

	var decoded []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("nominatim search %q: decode response: %w", text, err)
	}

	out := make([]ports.GeocodeResult, 0, len(decoded))
	for _, r := range decoded {
		lat, err := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search %q: parse lat %q: %w", text, r.Lat, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search %q: parse lon %q: %w", text, r.Lon, err)
		}
		out = append(out, ports.GeocodeResult{Lat: lat, Lng: lng, DisplayName: r.DisplayName})
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}
