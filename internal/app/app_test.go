package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-widgets/internal/config"
)

func testConfig(t *testing.T, upstream string) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		AppEnv:                "dev",
		LogLevel:              "info",
		Port:                  "0",
		HTTPTimeout:           2 * time.Second,
		CacheTTL:              time.Minute,
		CacheSweepInterval:    time.Minute,
		GeocodeLanguage:       "de",
		NominatimUserAgent:    "weather-widgets-test/1.0",
		NominatimBaseURL:      upstream + "/nominatim",
		OpenMeteoGeocodingURL: upstream + "/geocoding",
		OpenMeteoForecastURL:  upstream + "/forecast",
		StoreDriver:           config.DriverSQLite,
		SQLitePath:            ":memory:",
		CORSOrigins:           []string{"http://localhost:3000"},
	}
}

// fakeUpstream answers the geocoding and forecast endpoints for Hamburg only.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geocoding", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Hamburg" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"name":"Hamburg","country":"Deutschland","latitude":53.55,"longitude":10}]}`))
	})
	mux.HandleFunc("/nominatim/search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":4.2,"weather_code":61},"current_units":{"temperature_2m":"°C"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAppServesWidgetsAndWeather(t *testing.T) {
	upstream := fakeUpstream(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), testConfig(t, upstream.URL), logger)
	require.NoError(t, err)
	defer a.Close()

	req := httptest.NewRequest(http.MethodPost, "/widgets", strings.NewReader(`{"location":"Hamburg"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.HTTP().Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = a.HTTP().Test(httptest.NewRequest(http.MethodGet, "/widgets/weather?location=Hamburg", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		Condition string         `json:"condition"`
		Current   map[string]any `json:"current"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, "rain", snap.Condition)
	require.Equal(t, 4.2, snap.Current["temperature_2m"])

	resp, err = a.HTTP().Test(httptest.NewRequest(http.MethodGet, "/widgets/weather?location=Atlantis", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppCORSAllowsConfiguredOrigin(t *testing.T) {
	upstream := fakeUpstream(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), testConfig(t, upstream.URL), logger)
	require.NoError(t, err)
	defer a.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := a.HTTP().Test(req)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServeStopsOnCancel(t *testing.T) {
	upstream := fakeUpstream(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(context.Background(), testConfig(t, upstream.URL), logger)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
