package weather

import (
	"context"
	"log/slog"
	"strings"

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/cache"
)

// Service resolves free-text locations to current weather.
type Service struct {
	locator   *Locator
	forecast  ForecastProvider
	snapshots *cache.TTL[Snapshot]
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(locator *Locator, forecast ForecastProvider, snapshots *cache.TTL[Snapshot], logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		locator:   locator,
		forecast:  forecast,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Current returns the weather for location, serving repeated queries from cache.
func (s *Service) Current(ctx context.Context, location string) (Snapshot, error) {
	query := strings.TrimSpace(location)
	if query == "" {
		return Snapshot{}, apperror.InvalidArgument("location required")
	}

	key := "weather:" + strings.ToLower(query)
	if snap, ok := s.snapshots.Get(key); ok {
		snap.Cached = true
		return snap, nil
	}

	place, err := s.locator.Resolve(ctx, query)
	if err != nil {
		return Snapshot{}, err
	}

	conditions, err := s.forecast.Current(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Query:        query,
		Resolved:     place,
		Current:      conditions.Current,
		CurrentUnits: conditions.Units,
		Condition:    conditionOf(conditions.Current),
	}
	s.snapshots.Set(key, snap)

	s.logger.Debug("weather resolved",
		"query", query,
		"place", place.Name,
		"source", place.Source,
		"condition", snap.Condition,
	)
	return snap, nil
}

// Locator exposes the geocoding adapter used by the service.
func (s *Service) Locator() *Locator {
	return s.locator
}
