package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultNominatimUA = "WeatherApp/0.1 (dev; contact: you@example.com)"

type AppConfig struct {
	AppEnv   string `yaml:"appEnv"`
	LogLevel string `yaml:"logLevel"`
	Port     string `yaml:"port"`

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout        time.Duration `yaml:"httpTimeout"`
	ProviderMaxRetries int           `yaml:"providerMaxRetries"`

	CacheTTL           time.Duration `yaml:"cacheTtl"`
	CacheSweepInterval time.Duration `yaml:"cacheSweepInterval"`
	// PrewarmInterval of zero disables the prewarm job.
	PrewarmInterval time.Duration `yaml:"prewarmInterval"`

	GeocodeLanguage       string `yaml:"geocodeLanguage"`
	NominatimUserAgent    string `yaml:"nominatimUserAgent"`
	NominatimBaseURL      string `yaml:"nominatimBaseUrl"`
	OpenMeteoGeocodingURL string `yaml:"openMeteoGeocodingUrl"`
	OpenMeteoForecastURL  string `yaml:"openMeteoForecastUrl"`

	StoreDriver string `yaml:"storeDriver"`
	SQLitePath  string `yaml:"sqlitePath"`
	DatabaseURL string `yaml:"databaseUrl"`

	CORSOrigins []string `yaml:"corsOrigins"`
}

// Load reads configuration from .env, an optional YAML file (CONFIG_PATH) and
// the environment, in that order of increasing precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		AppEnv:             "dev",
		LogLevel:           "info",
		Port:               "8080",
		HTTPTimeout:        8 * time.Second,
		ProviderMaxRetries: 1,
		CacheTTL:           5 * time.Minute,
		CacheSweepInterval: time.Minute,
		GeocodeLanguage:    "de",
		NominatimUserAgent: defaultNominatimUA,
		StoreDriver:        DriverMemory,
		SQLitePath:         "data/widgets.db",
		CORSOrigins:        []string{"http://localhost:3000"},
	}
}

func hydrateFromFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig) error {
	setString(&cfg.AppEnv, "APP_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Port, "PORT")
	setString(&cfg.GeocodeLanguage, "GEOCODE_LANGUAGE")
	setString(&cfg.NominatimUserAgent, "NOMINATIM_UA")
	setString(&cfg.NominatimBaseURL, "NOMINATIM_BASE_URL")
	setString(&cfg.OpenMeteoGeocodingURL, "OPENMETEO_GEOCODING_URL")
	setString(&cfg.OpenMeteoForecastURL, "OPENMETEO_FORECAST_URL")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.DatabaseURL, "DATABASE_URL")

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"CACHE_TTL", &cfg.CacheTTL},
		{"CACHE_SWEEP_INTERVAL", &cfg.CacheSweepInterval},
		{"PREWARM_INTERVAL", &cfg.PrewarmInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("PROVIDER_MAX_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_MAX_RETRIES: %w", err)
		}
		cfg.ProviderMaxRetries = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate ensures required fields are present and sane.
func (c *AppConfig) Validate() error {
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("APP_ENV %q (allowed: dev, prod)", c.AppEnv)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	if c.ProviderMaxRetries < 0 {
		return errors.New("provider max retries cannot be negative")
	}
	if c.CacheTTL <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if c.CacheSweepInterval <= 0 {
		return errors.New("cache sweep interval must be positive")
	}
	if c.PrewarmInterval < 0 {
		return errors.New("prewarm interval cannot be negative")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite path is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q (allowed: memory, sqlite, postgres)", c.StoreDriver)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *AppConfig) SlogLevel() (slog.Level, error) {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
