package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-widgets/internal/weather"
	"github.com/i474232898/weather-widgets/internal/widget"
)

const (
	jobCacheSweep = "cache-sweep"
	jobPrewarm    = "prewarm"

	prewarmTimeout = 30 * time.Second
	// Keeps fallback geocoding within Nominatim's usage policy.
	prewarmConcurrency = 2
)

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	Purge() int
}

type WidgetLister interface {
	List(ctx context.Context) ([]widget.Widget, error)
}

type Warmer interface {
	Current(ctx context.Context, location string) (weather.Snapshot, error)
}

type Options struct {
	SweepInterval time.Duration
	// PrewarmInterval of zero disables prewarming.
	PrewarmInterval time.Duration
}

// Scheduler runs cache maintenance and keeps saved widgets warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	opts      Options
	caches    map[string]Purger
	widgets   WidgetLister
	warmer    Warmer
	logger    *slog.Logger
}

// New creates a new Scheduler. caches is keyed by a name used in logs.
func New(opts Options, caches map[string]Purger, widgets WidgetLister, warmer Warmer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		opts:      opts,
		caches:    caches,
		widgets:   widgets,
		warmer:    warmer,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.opts.SweepInterval > 0 && len(s.caches) > 0 {
		_, err := s.scheduler.Every(s.opts.SweepInterval).
			Tag(jobCacheSweep).
			SingletonMode().
			WaitForSchedule().
			Do(func() {
				if n := s.sweep(); n > 0 {
					s.logger.Info("scheduler: cache sweep done", "dropped", n)
				}
			})
		if err != nil {
			return err
		}
	}

	if s.opts.PrewarmInterval > 0 && s.widgets != nil && s.warmer != nil {
		_, err := s.scheduler.Every(s.opts.PrewarmInterval).
			Tag(jobPrewarm).
			SingletonMode().
			Do(func() {
				ctx, cancel := context.WithTimeout(context.Background(), prewarmTimeout)
				defer cancel()
				s.prewarm(ctx)
			})
		if err != nil {
			return err
		}
	} else {
		s.logger.Info("scheduler: prewarm disabled")
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) sweep() int {
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n := s.caches[name].Purge()
		total += n
		if n > 0 {
			s.logger.Debug("scheduler: purged expired entries", "cache", name, "count", n)
		}
	}
	return total
}

// prewarm fetches weather for every saved widget so dashboards load from cache.
func (s *Scheduler) prewarm(ctx context.Context) {
	widgets, err := s.widgets.List(ctx)
	if err != nil {
		s.logger.Error("scheduler: list widgets failed", "error", err)
		return
	}
	if len(widgets) == 0 {
		return
	}

	s.logger.Debug("scheduler: running prewarm job", "widgets", len(widgets))

	var wg sync.WaitGroup
	sem := make(chan struct{}, prewarmConcurrency)
	for _, w := range widgets {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func(location string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if _, err := s.warmer.Current(ctx, location); err != nil {
				s.logger.Warn("scheduler: prewarm failed", "location", location, "error", err)
			}
		}(w.Location)
	}
	wg.Wait()
}
