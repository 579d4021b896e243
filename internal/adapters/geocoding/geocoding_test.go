package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"trip-route-engine/internal/platform/httpclient"
)

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Options{MaxAttempts: 1, Backoff: time.Millisecond, Timeout: 2 * time.Second})
}

func TestNominatimSearchParsesStringCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Springfield" || q.Get("limit") != "1" || q.Get("format") != "jsonv2" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"39.7990","lon":"-89.6440","display_name":"Springfield, IL"}]`))
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(testClient(), srv.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := g.Search(context.Background(), "Springfield", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("len(res) = %d, want 1", len(res))
	}
	if res[0].Lat != 39.799 || res[0].Lng != -89.644 {
		t.Fatalf("coords = (%v, %v), want (39.799, -89.644)", res[0].Lat, res[0].Lng)
	}
}

func TestNominatimSearchRejectsUnparseableCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"north","lon":"-89.6440"}]`))
	}))
	defer srv.Close()

	g, _ := NewNominatimGeocoder(testClient(), srv.URL, "")
	if _, err := g.Search(context.Background(), "Springfield", 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestORSSearchReadsGeoJSONLonLat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "key" {
			t.Errorf("Authorization = %q, want key", got)
		}
		if got := r.URL.Query().Get("size"); got != "1" {
			t.Errorf("size = %q, want 1", got)
		}
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-112.07,33.45]},"properties":{"label":"Phoenix"}}]}`))
	}))
	defer srv.Close()

	g, err := NewORSGeocoder(testClient(), "key", srv.URL, "US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := g.Search(context.Background(), "Phoenix", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 1 || res[0].Lat != 33.45 || res[0].Lng != -112.07 {
		t.Fatalf("res = %+v, want Phoenix at (33.45, -112.07)", res)
	}
}

func TestORSSearchEmptyFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	g, _ := NewORSGeocoder(testClient(), "key", srv.URL, "")
	res, err := g.Search(context.Background(), "nowhere", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("len(res) = %d, want 0", len(res))
	}
}

func TestNominatimSearchHonorsMinInterval(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	const interval = 40 * time.Millisecond
	g, err := NewNominatimGeocoder(testClient().WithMinInterval(interval), srv.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An unresolvable stop walks every candidate back to back.
	for _, q := range []string{"123 Main St, Suite 4B-2, Springfield ST 12345, Country", "123 Main St, Springfield ST 12345", "Springfield ST 12345"} {
		if _, err := g.Search(context.Background(), q, 1); err != nil {
			t.Fatalf("search %q: unexpected error: %v", q, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	if span := hits[2].Sub(hits[0]); span < 2*interval-20*time.Millisecond {
		t.Fatalf("3 requests spanned %v, want >= %v", span, 2*interval)
	}
}
