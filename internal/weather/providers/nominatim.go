package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-widgets/internal/weather"
)

// DefaultUserAgent identifies the client as required by the Nominatim usage policy.
const DefaultUserAgent = "WeatherWidgets/0.1 (dev; contact: you@example.com)"

// reverseZoom asks Nominatim for city-level detail.
const reverseZoom = 10

// NominatimProvider implements weather.AddressGeocoder for OpenStreetMap Nominatim.
type NominatimProvider struct {
	name     string
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewNominatimProvider builds the client. An empty User-Agent falls back to DefaultUserAgent.
func NewNominatimProvider(httpCfg HTTPClientConfig, baseURL, language string) *NominatimProvider {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if httpCfg.UserAgent == "" {
		httpCfg.UserAgent = DefaultUserAgent
	}
	return &NominatimProvider{
		name:     weather.SourceNominatim,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		httpCfg:  httpCfg,
		circuit:  newBreaker("nominatim"),
	}
}

func (p *NominatimProvider) Name() string {
	return p.name
}

type osmAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	Hamlet  string `json:"hamlet"`
	State   string `json:"state"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// placeName picks the most specific settlement name, then the fallbacks in order.
func (a osmAddress) placeName(fallbacks ...string) string {
	candidates := append([]string{a.City, a.Town, a.Village, a.Hamlet}, fallbacks...)
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func (a osmAddress) admin1() string {
	if a.State != "" {
		return a.State
	}
	return a.Region
}

type osmPlace struct {
	Lat         string     `json:"lat"`
	Lon         string     `json:"lon"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Address     osmAddress `json:"address"`
}

// Reverse resolves coordinates to the nearest named settlement. A 4xx answer or
// an answer without a usable name yields an invalid place and a nil error.
func (p *NominatimProvider) Reverse(ctx context.Context, lat, lon float64) (weather.ResolvedPlace, error) {
	params := p.baseParams()
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", strconv.Itoa(reverseZoom))

	resp, err := get(ctx, p.httpCfg, p.circuit, p.baseURL+"/reverse", params)
	if err != nil {
		return weather.ResolvedPlace{}, upstreamError("reverse geocoding", err)
	}
	if resp.status >= http.StatusBadRequest {
		return weather.ResolvedPlace{}, nil
	}

	var payload osmPlace
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return weather.ResolvedPlace{}, fmt.Errorf("nominatim: decode reverse: %w", err)
	}

	return payload.normalize(payload.Address.placeName(payload.Name)), nil
}

// Search runs a forward text search and returns normalized candidates in
// provider order. Candidates may be invalid; callers filter them.
func (p *NominatimProvider) Search(ctx context.Context, query string, limit int) ([]weather.ResolvedPlace, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	params := p.baseParams()
	params.Set("q", q)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	resp, err := get(ctx, p.httpCfg, p.circuit, p.baseURL+"/search", params)
	if err != nil {
		return nil, upstreamError("place search", err)
	}
	if resp.status >= http.StatusBadRequest {
		return nil, nil
	}

	var payload []osmPlace
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("nominatim: decode search: %w", err)
	}

	out := make([]weather.ResolvedPlace, 0, len(payload))
	for _, it := range payload {
		out = append(out, it.normalize(it.Address.placeName(it.Name, it.DisplayName)))
	}
	return out, nil
}

func (p *NominatimProvider) baseParams() url.Values {
	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("addressdetails", "1")
	if p.language != "" {
		values.Set("accept-language", p.language)
	}
	return values
}

func (it osmPlace) normalize(name string) weather.ResolvedPlace {
	return weather.ResolvedPlace{
		Name:      name,
		Admin1:    it.Address.admin1(),
		Country:   it.Address.Country,
		Latitude:  parseCoord(it.Lat),
		Longitude: parseCoord(it.Lon),
		Source:    weather.SourceNominatim,
	}
}

// parseCoord returns NaN for missing or malformed coordinates.
func parseCoord(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
