package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"pkt.systems/hipposync/schema"
)

type countingGeocoder struct {
	calls atomic.Int32
	addr  Address
	err   error
}

func (g *countingGeocoder) Reverse(context.Context, Position) (Address, error) {
	g.calls.Add(1)
	return g.addr, g.err
}

type deniedLocator struct{}

func (deniedLocator) CurrentPosition(context.Context) (Position, error) {
	return Position{}, schema.ErrLocationDenied
}

func TestAddressLocalityFallback(t *testing.T) {
	cases := []struct {
		addr Address
		want string
	}{
		{Address{City: "Stockholm", Town: "x"}, "Stockholm"},
		{Address{Town: "Nacka", Village: "y"}, "Nacka"},
		{Address{Village: "Vaxholm"}, "Vaxholm"},
		{Address{}, UnknownCity},
	}
	for _, tc := range cases {
		if got := tc.addr.Locality(); got != tc.want {
			t.Fatalf("Locality(%+v) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}

func TestBuildLocationJoinsNonEmptyParts(t *testing.T) {
	loc := BuildLocation(Position{Latitude: 59.33, Longitude: 18.06}, Address{City: "Stockholm", Country: "Sweden"}, "Europe/Stockholm")
	if loc.Formatted != "Stockholm, Sweden" {
		t.Fatalf("unexpected formatted %q", loc.Formatted)
	}
	if loc.Latitude != "59.33" || loc.Longitude != "18.06" || loc.Timezone != "Europe/Stockholm" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestNominatimGeocoder(t *testing.T) {
	var gotUA, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			http.NotFound(w, r)
			return
		}
		gotUA = r.UserAgent()
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"address":{"town":"Nacka","state":"Stockholm County","country":"Sweden"}}`))
	}))
	defer ts.Close()

	g := NominatimGeocoder{BaseURL: ts.URL + "/", UserAgent: "hipposync-test"}
	addr, err := g.Reverse(context.Background(), Position{Latitude: 59.31, Longitude: 18.16})
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if addr.Locality() != "Nacka" || addr.Country != "Sweden" {
		t.Fatalf("unexpected address %+v", addr)
	}
	if gotUA != "hipposync-test" {
		t.Fatalf("expected user agent, got %q", gotUA)
	}
	if !strings.Contains(gotQuery, "format=json") || !strings.Contains(gotQuery, "lat=59.31") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
}

func TestNominatimGeocoderHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()
	if _, err := (NominatimGeocoder{BaseURL: ts.URL}).Reverse(context.Background(), Position{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTrackerResolvesOnce(t *testing.T) {
	geocoder := &countingGeocoder{addr: Address{City: "Stockholm", Country: "Sweden"}}
	tracker := &Tracker{
		Locator:  StaticLocator{Position: &Position{Latitude: 1, Longitude: 2}},
		Geocoder: geocoder,
		Timezone: "Europe/Stockholm",
	}
	first := tracker.Resolve(context.Background())
	second := tracker.Resolve(context.Background())
	if first == nil || second == nil || first.Formatted != "Stockholm, Sweden" {
		t.Fatalf("unexpected locations %+v %+v", first, second)
	}
	if geocoder.calls.Load() != 1 {
		t.Fatalf("expected one geocoder call, got %d", geocoder.calls.Load())
	}
}

func TestTrackerDeclinedSkipsLookup(t *testing.T) {
	geocoder := &countingGeocoder{}
	tracker := &Tracker{Locator: StaticLocator{Position: &Position{}}, Geocoder: geocoder}
	tracker.Decline()
	if loc := tracker.Resolve(context.Background()); loc != nil {
		t.Fatalf("expected no location, got %+v", loc)
	}
	if geocoder.calls.Load() != 0 {
		t.Fatalf("expected no lookup after decline")
	}
}

func TestTrackerRecordsNonFatalErrors(t *testing.T) {
	tracker := &Tracker{Locator: deniedLocator{}, Geocoder: &countingGeocoder{}}
	if loc := tracker.Resolve(context.Background()); loc != nil {
		t.Fatalf("expected nil location")
	}
	if !strings.Contains(tracker.Error(), "denied") {
		t.Fatalf("unexpected error %q", tracker.Error())
	}

	unsupported := &Tracker{Locator: StaticLocator{}}
	unsupported.Resolve(context.Background())
	if !strings.Contains(unsupported.Error(), "not supported") {
		t.Fatalf("unexpected error %q", unsupported.Error())
	}

	failing := &Tracker{
		Locator:  StaticLocator{Position: &Position{}},
		Geocoder: &countingGeocoder{err: errors.New("boom")},
	}
	if loc := failing.Resolve(context.Background()); loc != nil || !strings.Contains(failing.Error(), "boom") {
		t.Fatalf("expected geocoder failure recorded, got %+v %q", loc, failing.Error())
	}
}

func TestParsePosition(t *testing.T) {
	if pos, err := ParsePosition("", " "); pos != nil || err != nil {
		t.Fatalf("expected nil position, got %+v %v", pos, err)
	}
	pos, err := ParsePosition("59.33", "18.06")
	if err != nil || pos.Latitude != 59.33 || pos.Longitude != 18.06 {
		t.Fatalf("unexpected position %+v %v", pos, err)
	}
	if _, err := ParsePosition("north", "1"); err == nil {
		t.Fatalf("expected parse error")
	}
}
