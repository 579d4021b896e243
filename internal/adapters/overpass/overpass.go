package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/httpclient"
	"trip-route-engine/internal/platform/obs"
	"trip-route-engine/internal/ports"
)

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat"`
	Lon      *float64          `json:"lon"`
	Center   *latLon           `json:"center"`
	Geometry []latLon          `json:"geometry"`
	Tags     map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
	Remark   string    `json:"remark"`
}

// transportHeadroom is added to the server-side query timeout so the server,
// not the HTTP client, ends a slow query.
const transportHeadroom = 5 * time.Second

// Client implements POISource against an Overpass API interpreter endpoint.
type Client struct {
	client   *httpclient.Client
	endpoint string
	timeout  time.Duration
}

func NewClient(client *httpclient.Client, endpoint string, timeout time.Duration) (*Client, error) {
	if client == nil {
		return nil, errors.New("overpass client: http client is nil")
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("overpass client: endpoint is empty")
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	if need := timeout + transportHeadroom; client.Timeout() < need {
		client = client.WithTimeout(need)
	}

	return &Client{client: client, endpoint: endpoint, timeout: timeout}, nil
}

func (c *Client) Query(ctx context.Context, q ports.POIQuery) (_ []ports.POIElement, err error) {
	defer obs.Time(ctx, "overpass.Query")(&err)

	query, err := BuildQuery(q, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("overpass query: %w", err)
	}

	form := url.Values{}
	form.Set("data", query)
	body := form.Encode()

	resp, err := c.client.DoWithRetry(ctx, func() (*http.Request, error) {
		return c.client.NewRequest(ctx, http.MethodPost, c.endpoint, strings.NewReader(body), "application/x-www-form-urlencoded")
	})
	if err != nil {
		return nil, fmt.Errorf("overpass query: execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("overpass query: decode response: %w", err)
	}

	// Overpass reports runtime errors (timeouts, memory) in a 200 response.
	if strings.Contains(decoded.Remark, "runtime error") {
		return nil, fmt.Errorf("overpass query: %s", decoded.Remark)
	}

	out := make([]ports.POIElement, 0, len(decoded.Elements))
	for _, e := range decoded.Elements {
		pe := ports.POIElement{
			ID:   e.Type + "/" + strconv.FormatInt(e.ID, 10),
			Kind: e.Type,
			Tags: e.Tags,
		}
		if e.Lat != nil && e.Lon != nil {
			pe.Point = &domain.Coordinates{Lat: *e.Lat, Lng: *e.Lon}
		}
		if e.Center != nil {
			pe.Center = &domain.Coordinates{Lat: e.Center.Lat, Lng: e.Center.Lon}
		}
		for _, g := range e.Geometry {
			pe.Geometry = append(pe.Geometry, domain.Coordinates{Lat: g.Lat, Lng: g.Lon})
		}
		out = append(out, pe)
	}

	return out, nil
}

var safeTag = regexp.MustCompile(`^[A-Za-z0-9_:\-]+$`)

// BuildQuery renders one nwr clause per POI clause, restricted to the bounding
// box, with the result cap applied to the output statement.
func BuildQuery(q ports.POIQuery, timeout time.Duration) (string, error) {
	if !q.Bounds.Valid() {
		return "", fmt.Errorf("invalid bounds %+v", q.Bounds)
	}
	if len(q.Clauses) == 0 {
		return "", errors.New("no clauses")
	}
	if q.Limit <= 0 {
		return "", errors.New("limit must be positive")
	}

	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", q.Bounds.South, q.Bounds.West, q.Bounds.North, q.Bounds.East)

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(timeout.Seconds()))
	for _, cl := range q.Clauses {
		if !safeTag.MatchString(cl.Key) {
			return "", fmt.Errorf("clause %q: invalid key %q", cl.Category, cl.Key)
		}
		if len(cl.Values) == 0 {
			fmt.Fprintf(&b, "  nwr[%q](%s);\n", cl.Key, bbox)
			continue
		}
		for _, v := range cl.Values {
			if !safeTag.MatchString(v) {
				return "", fmt.Errorf("clause %q: invalid value %q", cl.Category, v)
			}
		}
		fmt.Fprintf(&b, "  nwr[%q~\"^(%s)$\"](%s);\n", cl.Key, strings.Join(cl.Values, "|"), bbox)
	}
	fmt.Fprintf(&b, ");\nout center %d;\n", q.Limit)

	return b.String(), nil
}
