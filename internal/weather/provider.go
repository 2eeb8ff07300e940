package weather

import "context"

// NameGeocoder looks up the single best place match for a name (Open-Meteo geocoding).
// A miss is reported as an invalid zero place and a nil error.
type NameGeocoder interface {
	Name() string
	SearchName(ctx context.Context, name string) (ResolvedPlace, error)
}

// AddressGeocoder is an address-aware geocoder with reverse lookup (Nominatim).
type AddressGeocoder interface {
	Name() string
	Reverse(ctx context.Context, lat, lon float64) (ResolvedPlace, error)
	Search(ctx context.Context, query string, limit int) ([]ResolvedPlace, error)
}

// ForecastProvider returns current conditions for coordinates.
type ForecastProvider interface {
	Name() string
	Current(ctx context.Context, lat, lon float64) (Conditions, error)
}
