package widget

import (
	"context"
	"strings"
	"time"
)

// Widget is a saved location tracked on the dashboard.
type Widget struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	LocationNorm string    `json:"location_norm"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Normalize derives the uniqueness key for a location.
func Normalize(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Repository persists widgets. Implementations enforce LocationNorm uniqueness
// atomically and report violations as an apperror.Conflict.
type Repository interface {
	// List returns all widgets, newest first.
	List(ctx context.Context) ([]Widget, error)
	Create(ctx context.Context, w Widget) error
	// Delete reports whether a widget with id existed.
	Delete(ctx context.Context, id string) (bool, error)
}
