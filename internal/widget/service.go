package widget

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-widgets/internal/apperror"
)

// ErrDuplicate is the conflict reported for an already saved location.
var ErrDuplicate = apperror.Conflict("widget already exists")

// Service implements widget CRUD on top of a Repository.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Widget, error) {
	widgets, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list widgets", err)
	}
	if widgets == nil {
		widgets = []Widget{}
	}
	return widgets, nil
}

// Create saves a new widget for the trimmed location.
func (s *Service) Create(ctx context.Context, location string) (Widget, error) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return Widget{}, apperror.InvalidArgument("location required")
	}

	w := Widget{
		ID:           uuid.NewString(),
		Location:     loc,
		LocationNorm: Normalize(loc),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			return Widget{}, err
		}
		return Widget{}, apperror.Internal("failed to create widget", err)
	}

	s.logger.Info("widget created", "id", w.ID, "location", w.Location)
	return w, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.NotFound("widget not found")
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperror.Internal("failed to delete widget", err)
	}
	if !found {
		return apperror.NotFound("widget not found")
	}
	s.logger.Info("widget deleted", "id", id)
	return nil
}
