package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-widgets/internal/api/http"
	"github.com/i474232898/weather-widgets/internal/cache"
	"github.com/i474232898/weather-widgets/internal/config"
	"github.com/i474232898/weather-widgets/internal/scheduler"
	"github.com/i474232898/weather-widgets/internal/store"
	"github.com/i474232898/weather-widgets/internal/weather"
	"github.com/i474232898/weather-widgets/internal/weather/providers"
	"github.com/i474232898/weather-widgets/internal/widget"
)

const shutdownTimeout = 10 * time.Second

// Weather bundles the lookup pipeline with the caches it owns.
type Weather struct {
	Service     *weather.Service
	Places      *cache.TTL[weather.ResolvedPlace]
	Suggestions *cache.TTL[[]weather.Suggestion]
	Snapshots   *cache.TTL[weather.Snapshot]
}

// NewWeather builds providers, caches, locator and weather service from cfg.
func NewWeather(cfg *config.AppConfig, logger *slog.Logger) *Weather {
	// Shared HTTP client for outbound provider calls; each call carries its own deadline.
	backoff := providers.DefaultBackoff()
	backoff.MaxRetries = cfg.ProviderMaxRetries
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{},
		Timeout: cfg.HTTPTimeout,
		Backoff: backoff,
	}
	nominatimCfg := httpCfg
	nominatimCfg.UserAgent = cfg.NominatimUserAgent

	w := &Weather{
		Places:      cache.NewTTL[weather.ResolvedPlace](cfg.CacheTTL, cache.WithName("places")),
		Suggestions: cache.NewTTL[[]weather.Suggestion](cfg.CacheTTL, cache.WithName("suggestions")),
		Snapshots:   cache.NewTTL[weather.Snapshot](cfg.CacheTTL, cache.WithName("snapshots")),
	}

	locator := weather.NewLocator(
		providers.NewOpenMeteoGeocoder(httpCfg, cfg.OpenMeteoGeocodingURL, cfg.GeocodeLanguage),
		providers.NewNominatimProvider(nominatimCfg, cfg.NominatimBaseURL, cfg.GeocodeLanguage),
		w.Places,
		w.Suggestions,
		logger,
	)
	w.Service = weather.NewService(
		locator,
		providers.NewOpenMeteoProvider(httpCfg, cfg.OpenMeteoForecastURL),
		w.Snapshots,
		logger,
	)
	return w
}

// App is the assembled HTTP service.
type App struct {
	cfg       *config.AppConfig
	logger    *slog.Logger
	store     store.Store
	scheduler *scheduler.Scheduler
	http      *fiber.App
}

// New opens the widget store and wires every component. Close releases the store.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	wx := NewWeather(cfg, logger)

	widgetStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	widgets := widget.NewService(widgetStore, logger)

	sched := scheduler.New(
		scheduler.Options{
			SweepInterval:   cfg.CacheSweepInterval,
			PrewarmInterval: cfg.PrewarmInterval,
		},
		map[string]scheduler.Purger{
			"places":      wx.Places,
			"suggestions": wx.Suggestions,
			"snapshots":   wx.Snapshots,
		},
		widgets,
		wx.Service,
		logger,
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     widgetStore,
		scheduler: sched,
		http:      newHTTP(cfg, logger, widgets, wx.Service),
	}, nil
}

func newHTTP(cfg *config.AppConfig, logger *slog.Logger, widgets *widget.Service, forecasts *weather.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               httpapi.ServiceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          20 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler(logger),
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(httpapi.Metrics())

	httpapi.RegisterRoutes(app, widgets, forecasts)
	return app
}

// HTTP exposes the Fiber app, mainly for tests.
func (a *App) HTTP() *fiber.App {
	return a.http
}

// Serve starts the scheduler and the listener, then blocks until ctx is done
// and shuts both down.
func (a *App) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "port", a.cfg.Port, "store", a.cfg.StoreDriver)
		errCh <- a.http.Listen(":" + a.cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.http.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", "error", err)
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func (a *App) Close() error {
	return a.store.Close()
}
