package weather

import (
	"math"
	"strings"
)

// Provider identifiers stored in ResolvedPlace.Source.
const (
	SourceOpenMeteo = "open-meteo"
	SourceNominatim = "nominatim"
)

// ResolvedPlace is the normalized result of any geocoding provider.
type ResolvedPlace struct {
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    string  `json:"source"`
}

// Valid reports whether the place has a name and finite coordinates.
func (p ResolvedPlace) Valid() bool {
	return strings.TrimSpace(p.Name) != "" && finite(p.Latitude) && finite(p.Longitude)
}

// Label renders "name, admin1, country", skipping empty parts.
func (p ResolvedPlace) Label() string {
	parts := []string{p.Name}
	if p.Admin1 != "" {
		parts = append(parts, p.Admin1)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	return strings.Join(parts, ", ")
}

// LocatedPlace is a reverse-geocoding answer.
type LocatedPlace struct {
	ResolvedPlace
	Cached bool `json:"cached"`
}

// Suggestion is a labeled search candidate.
type Suggestion struct {
	Label string `json:"label"`
	ResolvedPlace
}

// Conditions holds the forecast provider's current block, passed through as-is.
type Conditions struct {
	Current map[string]any
	Units   map[string]string
}

// Snapshot is the current-weather view for a free-text location.
type Snapshot struct {
	Query        string            `json:"query"`
	Resolved     ResolvedPlace     `json:"resolved"`
	Current      map[string]any    `json:"current"`
	CurrentUnits map[string]string `json:"current_units"`
	Condition    Condition         `json:"condition"`
	Cached       bool              `json:"cached"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
