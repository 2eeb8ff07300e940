package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/weather-widgets/internal/config"
	"github.com/i474232898/weather-widgets/internal/widget"
)

// Store is a widget repository that owns resources.
type Store interface {
	widget.Repository
	Close() error
}

// Open builds the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		logger.Info("using in-memory widget store")
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("using sqlite widget store", "path", cfg.SQLitePath)
		return s, nil
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres widget store")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
