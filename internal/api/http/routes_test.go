package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/cache"
	"github.com/i474232898/weather-widgets/internal/store"
	"github.com/i474232898/weather-widgets/internal/weather"
	"github.com/i474232898/weather-widgets/internal/widget"
)

type stubNames struct {
	places map[string]weather.ResolvedPlace
}

func (s *stubNames) Name() string { return "openmeteo" }

func (s *stubNames) SearchName(_ context.Context, name string) (weather.ResolvedPlace, error) {
	return s.places[name], nil
}

type stubAddress struct {
	reverse    weather.ResolvedPlace
	reverseErr error
	searches   int
}

func (s *stubAddress) Name() string { return "nominatim" }

func (s *stubAddress) Reverse(context.Context, float64, float64) (weather.ResolvedPlace, error) {
	return s.reverse, s.reverseErr
}

func (s *stubAddress) Search(context.Context, string, int) ([]weather.ResolvedPlace, error) {
	s.searches++
	return nil, nil
}

type stubForecast struct {
	err error
}

func (s *stubForecast) Name() string { return "openmeteo" }

func (s *stubForecast) Current(context.Context, float64, float64) (weather.Conditions, error) {
	if s.err != nil {
		return weather.Conditions{}, s.err
	}
	return weather.Conditions{
		Current: map[string]any{"temperature_2m": 7.1, "weather_code": float64(3)},
		Units:   map[string]string{"temperature_2m": "°C"},
	}, nil
}

type testEnv struct {
	app      *fiber.App
	address  *stubAddress
	forecast *stubForecast
}

var paris = weather.ResolvedPlace{
	Name:      "Paris",
	Country:   "Frankreich",
	Latitude:  48.85,
	Longitude: 2.35,
	Source:    weather.SourceOpenMeteo,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	names := &stubNames{places: map[string]weather.ResolvedPlace{"Paris": paris}}
	address := &stubAddress{}
	forecast := &stubForecast{}

	locator := weather.NewLocator(names, address,
		cache.NewTTL[weather.ResolvedPlace](0),
		cache.NewTTL[[]weather.Suggestion](0),
		logger,
	)
	snapshots := cache.NewTTL[weather.Snapshot](0, cache.WithName("test-snapshots"))
	forecasts := weather.NewService(locator, forecast, snapshots, logger)
	widgets := widget.NewService(store.NewMemoryStore(), logger)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(Metrics())
	RegisterRoutes(app, widgets, forecasts)

	return &testEnv{app: app, address: address, forecast: forecast}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func errorMessage(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"ok":true,"service":"weather-widgets"}`, string(raw))
}

func TestCreateWidgetIsListedFirst(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/widgets", `{"location":"Berlin"}`)
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodPost, "/widgets", `{"location":"  Paris "}`)
	require.Equal(t, http.StatusCreated, status)

	var created widget.Widget
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Paris", created.Location)
	require.Equal(t, "paris", created.LocationNorm)
	require.False(t, created.CreatedAt.IsZero())

	status, raw = env.do(t, http.MethodGet, "/widgets", "")
	require.Equal(t, http.StatusOK, status)

	var list []widget.Widget
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 2)
	require.Equal(t, created.ID, list[0].ID)
}

func TestListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/widgets", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(raw))
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/widgets", `{"location":"Berlin"}`)
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodPost, "/widgets", `{"location":"berlin "}`)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "widget already exists", errorMessage(t, raw))
}

func TestCreateRejectsMissingLocation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{}`, `{"location":"   "}`, `{"location":`} {
		status, raw := env.do(t, http.MethodPost, "/widgets", body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.NotEmpty(t, errorMessage(t, raw))
	}
}

func TestDeleteWidget(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodDelete, "/widgets/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "widget not found", errorMessage(t, raw))

	_, raw = env.do(t, http.MethodPost, "/widgets", `{"location":"Oslo"}`)
	var created widget.Widget
	require.NoError(t, json.Unmarshal(raw, &created))

	status, raw = env.do(t, http.MethodDelete, "/widgets/"+created.ID, "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"ok":true}`, string(raw))

	status, _ = env.do(t, http.MethodDelete, "/widgets/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, status)
}

func TestWeatherEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/widgets/weather?location=Paris", "")
	require.Equal(t, http.StatusOK, status)

	var snap weather.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.Equal(t, "Paris", snap.Query)
	require.Equal(t, paris, snap.Resolved)
	require.Equal(t, weather.ConditionCloudy, snap.Condition)
	require.Equal(t, "°C", snap.CurrentUnits["temperature_2m"])
	require.False(t, snap.Cached)

	_, raw = env.do(t, http.MethodGet, "/widgets/weather?location=paris", "")
	require.NoError(t, json.Unmarshal(raw, &snap))
	require.True(t, snap.Cached)
}

func TestWeatherCachedQueryKeepsOriginalInput(t *testing.T) {
	cases := map[string][]string{
		"misses in between":   {"Xyzzy", "Xyzzy", "Xyzzy", "Xyzzy", "Xyzzy", "PARIS"},
		"other city then hit": {"Hamburg", "paris"},
	}
	for name, later := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)

			status, _ := env.do(t, http.MethodGet, "/widgets/weather?location=Paris", "")
			require.Equal(t, http.StatusOK, status)

			var snap weather.Snapshot
			for _, location := range later {
				_, raw := env.do(t, http.MethodGet, "/widgets/weather?location="+location, "")
				snap = weather.Snapshot{}
				_ = json.Unmarshal(raw, &snap)
			}
			require.True(t, snap.Cached)
			require.Equal(t, "Paris", snap.Query)
		})
	}
}

func TestWeatherEndpointErrors(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/widgets/weather", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, raw := env.do(t, http.MethodGet, "/widgets/weather?location=Nowhereville12345", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, errorMessage(t, raw), "Nowhereville12345")

	env.forecast.err = apperror.Upstream("openmeteo unavailable", http.StatusServiceUnavailable, errors.New("boom"))
	status, raw = env.do(t, http.MethodGet, "/widgets/weather?location=Paris", "")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "openmeteo unavailable", errorMessage(t, raw))
}

func TestReverseEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.address.reverse = weather.ResolvedPlace{
		Name:      "München",
		Admin1:    "Bayern",
		Country:   "Deutschland",
		Latitude:  48.137,
		Longitude: 11.575,
		Source:    weather.SourceNominatim,
	}

	status, raw := env.do(t, http.MethodGet, "/widgets/reverse?lat=48.1371&lon=11.5754", "")
	require.Equal(t, http.StatusOK, status)

	var place weather.LocatedPlace
	require.NoError(t, json.Unmarshal(raw, &place))
	require.Equal(t, "München", place.Name)
	require.False(t, place.Cached)

	_, raw = env.do(t, http.MethodGet, "/widgets/reverse?lat=48.1372&lon=11.5749", "")
	require.NoError(t, json.Unmarshal(raw, &place))
	require.True(t, place.Cached)
}

func TestReverseEndpointErrors(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/widgets/reverse?lat=abc&lon=1", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "lat/lon invalid", errorMessage(t, raw))

	status, _ = env.do(t, http.MethodGet, "/widgets/reverse?lat=1", "")
	require.Equal(t, http.StatusBadRequest, status)

	status, raw = env.do(t, http.MethodGet, "/widgets/reverse?lat=0&lon=0", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, errorMessage(t, raw), "closer to a city")

	env.address.reverseErr = apperror.Upstream("reverse geocoding unavailable", http.StatusServiceUnavailable, errors.New("boom"))
	status, raw = env.do(t, http.MethodGet, "/widgets/reverse?lat=4&lon=4", "")
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "reverse geocoding failed", errorMessage(t, raw))

	env.address.reverseErr = errors.New("decode failed")
	status, raw = env.do(t, http.MethodGet, "/widgets/reverse?lat=5&lon=5", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "reverse geocoding failed", errorMessage(t, raw))
}

func TestSuggestShortQuerySkipsProvider(t *testing.T) {
	env := newTestEnv(t)

	status, raw := env.do(t, http.MethodGet, "/widgets/suggest?q=a", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(raw))
	require.Zero(t, env.address.searches)

	status, raw = env.do(t, http.MethodGet, "/widgets/suggest?q=Spring", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(raw))
	require.Equal(t, 1, env.address.searches)
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/widgets/weather?location=Paris", "")
	require.Equal(t, http.StatusOK, status)

	status, raw := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(raw), `weather_widgets_cache_lookups_total{cache="test-snapshots",result="miss"}`)
	require.Contains(t, string(raw), `path="/widgets/weather"`)
}
