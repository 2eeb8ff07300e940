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

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/weather"
)

// CurrentMetrics are the current-condition fields requested from the forecast API.
var CurrentMetrics = []string{
	"temperature_2m",
	"apparent_temperature",
	"relative_humidity_2m",
	"wind_speed_10m",
	"wind_gusts_10m",
	"precipitation",
	"cloud_cover",
	"weather_code",
}

// OpenMeteoProvider implements weather.ForecastProvider for the Open-Meteo forecast API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(httpCfg HTTPClientConfig, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: httpCfg,
		circuit: newBreaker("openmeteo-forecast"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Current fetches the current block for the coordinates. Values and units are
// returned as the provider sent them; a missing block stays nil.
func (p *OpenMeteoProvider) Current(ctx context.Context, lat, lon float64) (weather.Conditions, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("current", strings.Join(CurrentMetrics, ","))
	values.Set("wind_speed_unit", "kmh")
	values.Set("timezone", "auto")

	resp, err := get(ctx, p.httpCfg, p.circuit, p.baseURL, values)
	if err != nil {
		return weather.Conditions{}, upstreamError("weather provider", err)
	}
	if resp.status >= http.StatusBadRequest {
		return weather.Conditions{}, apperror.Upstream(
			fmt.Sprintf("weather provider rejected request: %s", reason(resp.body)),
			resp.status, nil,
		)
	}

	var payload struct {
		Current      map[string]any    `json:"current"`
		CurrentUnits map[string]string `json:"current_units"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return weather.Conditions{}, fmt.Errorf("openmeteo: decode forecast: %w", err)
	}

	return weather.Conditions{
		Current: payload.Current,
		Units:   payload.CurrentUnits,
	}, nil
}

// reason extracts Open-Meteo's {"error":true,"reason":"..."} message.
func reason(body []byte) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Reason == "" {
		return "unknown reason"
	}
	return e.Reason
}

// OpenMeteoGeocoder implements weather.NameGeocoder for the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	name     string
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(httpCfg HTTPClientConfig, baseURL, language string) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	return &OpenMeteoGeocoder{
		name:     weather.SourceOpenMeteo,
		baseURL:  baseURL,
		language: language,
		httpCfg:  httpCfg,
		circuit:  newBreaker("openmeteo-geocoding"),
	}
}

func (g *OpenMeteoGeocoder) Name() string {
	return g.name
}

// SearchName returns the best match for name. No match or a 4xx answer yields
// an invalid zero place and a nil error.
func (g *OpenMeteoGeocoder) SearchName(ctx context.Context, name string) (weather.ResolvedPlace, error) {
	q := strings.TrimSpace(name)
	if q == "" {
		return weather.ResolvedPlace{}, nil
	}
	values := url.Values{}
	values.Set("name", q)
	values.Set("count", "1")
	values.Set("format", "json")
	if g.language != "" {
		values.Set("language", g.language)
	}

	resp, err := get(ctx, g.httpCfg, g.circuit, g.baseURL, values)
	if err != nil {
		return weather.ResolvedPlace{}, upstreamError("geocoding provider", err)
	}
	if resp.status >= http.StatusBadRequest {
		return weather.ResolvedPlace{}, nil
	}

	var payload struct {
		Results []struct {
			Name      string   `json:"name"`
			Admin1    string   `json:"admin1"`
			Country   string   `json:"country"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return weather.ResolvedPlace{}, fmt.Errorf("openmeteo: decode geocoding: %w", err)
	}
	if len(payload.Results) == 0 {
		return weather.ResolvedPlace{}, nil
	}

	hit := payload.Results[0]
	return weather.ResolvedPlace{
		Name:      hit.Name,
		Admin1:    hit.Admin1,
		Country:   hit.Country,
		Latitude:  deref(hit.Latitude),
		Longitude: deref(hit.Longitude),
		Source:    weather.SourceOpenMeteo,
	}, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}
