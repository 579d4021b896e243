package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"trip-route-engine/internal/domain"
	"trip-route-engine/internal/platform/httpclient"
	"trip-route-engine/internal/ports"
)

var testBounds = domain.Bounds{South: 45.0, West: 6.0, North: 45.5, East: 6.5}

func TestBuildQueryOneClausePerCategory(t *testing.T) {
	q := ports.POIQuery{
		Bounds: testBounds,
		Clauses: []ports.POIClause{
			{Category: "camping", Key: "tourism", Values: []string{"camp_site", "caravan_site"}},
			{Category: "fuel", Key: "amenity", Values: []string{"fuel"}},
		},
		Limit: 300,
	}

	got, err := BuildQuery(q, 25*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		`[out:json][timeout:25];`,
		`nwr["tourism"~"^(camp_site|caravan_site)$"](45.000000,6.000000,45.500000,6.500000);`,
		`nwr["amenity"~"^(fuel)$"](45.000000,6.000000,45.500000,6.500000);`,
		`out center 300;`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("query missing %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "nwr["); n != 2 {
		t.Fatalf("clauses = %d, want 2", n)
	}
}

func TestBuildQueryRejectsUnsafeValues(t *testing.T) {
	q := ports.POIQuery{
		Bounds:  testBounds,
		Clauses: []ports.POIClause{{Category: "x", Key: "amenity", Values: []string{`fuel"];out;`}}},
		Limit:   10,
	}
	if _, err := BuildQuery(q, time.Second); err == nil {
		t.Fatal("expected error for unsafe value")
	}
}

func TestQueryDecodesNodesAndWayCenters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if !strings.Contains(r.PostForm.Get("data"), "out center 50;") {
			t.Errorf("data = %q", r.PostForm.Get("data"))
		}
		w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":45.1,"lon":6.1,"tags":{"amenity":"fuel","name":"Station"}},
			{"type":"way","id":2,"center":{"lat":45.2,"lon":6.2},"tags":{"tourism":"camp_site"}}
		]}`))
	}))
	defer srv.Close()

	hc := httpclient.New(httpclient.Options{MaxAttempts: 1})
	c, err := NewClient(hc, srv.URL, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	els, err := c.Query(context.Background(), ports.POIQuery{
		Bounds:  testBounds,
		Clauses: []ports.POIClause{{Category: "fuel", Key: "amenity", Values: []string{"fuel"}}},
		Limit:   50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 2 {
		t.Fatalf("len(els) = %d, want 2", len(els))
	}
	if els[0].ID != "node/1" || els[0].Point == nil || els[0].Point.Lat != 45.1 {
		t.Fatalf("els[0] = %+v, want node/1 with point", els[0])
	}
	if els[1].Point != nil || els[1].Center == nil || els[1].Center.Lng != 6.2 {
		t.Fatalf("els[1] = %+v, want way with center only", els[1])
	}
}

func TestQueryRuntimeErrorRemark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[],"remark":"runtime error: Query timed out"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(httpclient.New(httpclient.Options{MaxAttempts: 1}), srv.URL, time.Second)
	_, err := c.Query(context.Background(), ports.POIQuery{
		Bounds:  testBounds,
		Clauses: []ports.POIClause{{Category: "fuel", Key: "amenity"}},
		Limit:   5,
	})
	if err == nil {
		t.Fatal("expected runtime error")
	}
}

func TestQueryOutlivesShortOutboundTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"elements":[{"type":"node","id":7,"lat":45.1,"lon":6.1,"tags":{"amenity":"fuel"}}]}`))
	}))
	defer srv.Close()

	hc := httpclient.New(httpclient.Options{MaxAttempts: 1, Timeout: 100 * time.Millisecond})
	c, err := NewClient(hc, srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := c.client.Timeout(), 2*time.Second+transportHeadroom; got != want {
		t.Fatalf("transport timeout = %v, want %v", got, want)
	}
	if got := hc.Timeout(); got != 100*time.Millisecond {
		t.Fatalf("shared client timeout = %v, want 100ms (unchanged)", got)
	}

	els, err := c.Query(context.Background(), ports.POIQuery{
		Bounds:  testBounds,
		Clauses: []ports.POIClause{{Category: "fuel", Key: "amenity", Values: []string{"fuel"}}},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(els) != 1 || els[0].ID != "node/7" {
		t.Fatalf("els = %+v, want node/7", els)
	}
}
