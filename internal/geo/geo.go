// Package geo resolves an optional human-readable location for signup.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// UnknownCity is used when the geocoder reports no city, town or village.
const UnknownCity = "Unknown"

// Position is a point on the globe.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Locator reports the current position of the device.
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// StaticLocator reports a fixed, configured position.
type StaticLocator struct {
	Position *Position
}

// CurrentPosition implements Locator.
func (l StaticLocator) CurrentPosition(context.Context) (Position, error) {
	if l.Position == nil {
		return Position{}, schema.ErrLocationUnsupported
	}
	return *l.Position, nil
}

// ParsePosition parses decimal latitude and longitude strings.
// Two blank strings yield nil.
func ParsePosition(lat, lon string) (*Position, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" && lon == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	return &Position{Latitude: la, Longitude: lo}, nil
}

// Address is the subset of a reverse-geocoding answer used here.
type Address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Locality returns the city, falling back through town and village.
func (a Address) Locality() string {
	for _, candidate := range []string{a.City, a.Town, a.Village} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return UnknownCity
}

// ReverseGeocoder converts coordinates to an address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, pos Position) (Address, error)
}

// NominatimGeocoder queries a Nominatim-compatible /reverse endpoint.
type NominatimGeocoder struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Reverse implements ReverseGeocoder.
func (g NominatimGeocoder) Reverse(ctx context.Context, pos Position) (Address, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(g.BaseURL), "/"))
	if err != nil || base.Scheme == "" {
		return Address{}, fmt.Errorf("geocoder url %q is invalid", g.BaseURL)
	}
	endpoint := base.JoinPath("reverse")
	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Address{}, err
	}
	req.Header.Set("Accept", "application/json")
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}
	client := g.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Address{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("reverse geocoding failed: %s", resp.Status)
	}
	var payload struct {
		Address Address `json:"address"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("reverse geocoding response: %w", err)
	}
	return payload.Address, nil
}

// LocalTimezone returns the IANA name of the local timezone, or UTC.
func LocalTimezone() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}

// BuildLocation assembles the location record from coordinates and an address.
func BuildLocation(pos Position, addr Address, timezone string) schema.LocationInfo {
	info := schema.LocationInfo{
		City:      addr.Locality(),
		State:     strings.TrimSpace(addr.State),
		Country:   strings.TrimSpace(addr.Country),
		Latitude:  strconv.FormatFloat(pos.Latitude, 'f', -1, 64),
		Longitude: strconv.FormatFloat(pos.Longitude, 'f', -1, 64),
		Timezone:  timezone,
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{info.City, info.State, info.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	info.Formatted = strings.Join(parts, ", ")
	return info
}

// Tracker resolves the signup location at most once. Failures are recorded
// as a message and never block the caller.
type Tracker struct {
	Locator  Locator
	Geocoder ReverseGeocoder
	// Timezone overrides LocalTimezone when set.
	Timezone string

	mu       sync.Mutex
	declined bool
	location *schema.LocationInfo
	errMsg   string
}

// Decline records that the user refused location sharing.
func (t *Tracker) Decline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.declined = true
}

// Declined reports whether location sharing was refused.
func (t *Tracker) Declined() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.declined
}

// Location returns the resolved location, if any.
func (t *Tracker) Location() *schema.LocationInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.location == nil {
		return nil
	}
	loc := *t.location
	return &loc
}

// Error returns the recorded non-fatal error message, if any.
func (t *Tracker) Error() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Resolve looks up the location unless the user declined or a location or
// error is already recorded. It returns the location, which may be nil.
func (t *Tracker) Resolve(ctx context.Context) *schema.LocationInfo {
	t.mu.Lock()
	if t.declined || t.location != nil || t.errMsg != "" {
		t.mu.Unlock()
		return t.Location()
	}
	t.mu.Unlock()

	log := pslog.Ctx(ctx)
	loc, msg := t.lookup(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if msg != "" {
		t.errMsg = msg
		log.Debug("location unavailable", "reason", msg)
		return nil
	}
	t.location = &loc
	log.Debug("location resolved", "formatted", loc.Formatted)
	out := loc
	return &out
}

func (t *Tracker) lookup(ctx context.Context) (schema.LocationInfo, string) {
	if t.Locator == nil {
		return schema.LocationInfo{}, describe(schema.ErrLocationUnsupported)
	}
	pos, err := t.Locator.CurrentPosition(ctx)
	if err != nil {
		return schema.LocationInfo{}, describe(err)
	}
	if t.Geocoder == nil {
		return schema.LocationInfo{}, "Could not determine location: no geocoder configured"
	}
	addr, err := t.Geocoder.Reverse(ctx, pos)
	if err != nil {
		return schema.LocationInfo{}, "Could not determine location: " + err.Error()
	}
	tz := strings.TrimSpace(t.Timezone)
	if tz == "" {
		tz = LocalTimezone()
	}
	return BuildLocation(pos, addr, tz), ""
}

func describe(err error) string {
	switch {
	case errors.Is(err, schema.ErrLocationDenied):
		return "Location access denied. You can continue without it."
	case errors.Is(err, schema.ErrLocationUnsupported):
		return "Geolocation is not supported on this device."
	default:
		return "Could not determine location: " + err.Error()
	}
}
