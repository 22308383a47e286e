package location

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

// StaticResolver always reports the same coordinate.
type StaticResolver struct {
	Coordinate Coordinate
}

func (r StaticResolver) Resolve(context.Context) (Coordinate, error) {
	return r.Coordinate, nil
}

// Address is the subset of a postal address used for geocoding.
type Address struct {
	City    string
	State   string
	Country string
}

func (a Address) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.City, a.State, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Geocoder turns an address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addr Address) (Coordinate, error)
}

// GeocodingResolver resolves a fixed address once and caches the result.
type GeocodingResolver struct {
	addr     Address
	geocoder Geocoder

	mu     sync.Mutex
	cached *Coordinate
}

func NewGeocodingResolver(addr Address, g Geocoder) *GeocodingResolver {
	return &GeocodingResolver{addr: addr, geocoder: g}
}

func (r *GeocodingResolver) Resolve(ctx context.Context) (Coordinate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached, nil
	}
	if strings.TrimSpace(r.addr.City) == "" {
		return Coordinate{}, fmt.Errorf("%w: no address configured", ErrUnavailable)
	}

	c, err := r.geocoder.Geocode(ctx, r.addr)
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocode %q: %w", r.addr.String(), err)
	}
	r.cached = &c
	return c, nil
}

// GoogleGeocoder geocodes through the Google Maps Geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the package-level API key used by the
// geocoder library.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// Geocode ignores ctx: the underlying library does not take one.
func (g *GoogleGeocoder) Geocode(_ context.Context, addr Address) (Coordinate, error) {
	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    addr.City,
		State:   addr.State,
		Country: addr.Country,
	})
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}

var (
	_ Resolver = StaticResolver{}
	_ Resolver = (*GeocodingResolver)(nil)
	_ Geocoder = (*GoogleGeocoder)(nil)
)
