package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/i474232898/weather-widgets/internal/apperror"
	"github.com/i474232898/weather-widgets/internal/cache"
)

const (
	suggestLimit   = 8
	minQueryLength = 2
)

// Locator resolves free text and coordinates to places. It owns the place and
// suggestion caches.
type Locator struct {
	byName      NameGeocoder
	byAddress   AddressGeocoder
	places      *cache.TTL[ResolvedPlace]
	suggestions *cache.TTL[[]Suggestion]
	logger      *slog.Logger
}

func NewLocator(
	byName NameGeocoder,
	byAddress AddressGeocoder,
	places *cache.TTL[ResolvedPlace],
	suggestions *cache.TTL[[]Suggestion],
	logger *slog.Logger,
) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		byName:      byName,
		byAddress:   byAddress,
		places:      places,
		suggestions: suggestions,
		logger:      logger,
	}
}

// Reverse finds the nearest named settlement for the coordinates.
func (l *Locator) Reverse(ctx context.Context, lat, lon float64) (LocatedPlace, error) {
	if !finite(lat) || !finite(lon) {
		return LocatedPlace{}, apperror.InvalidArgument("lat/lon invalid")
	}

	key := reverseKey(l.byAddress.Name(), lat, lon)
	if place, ok := l.places.Get(key); ok {
		return LocatedPlace{ResolvedPlace: place, Cached: true}, nil
	}

	place, err := l.byAddress.Reverse(ctx, lat, lon)
	if err != nil {
		return LocatedPlace{}, err
	}
	if !place.Valid() {
		return LocatedPlace{}, apperror.NotFound("no place found nearby, try clicking closer to a city")
	}

	l.places.Set(key, place)
	return LocatedPlace{ResolvedPlace: place}, nil
}

// Suggest returns labeled candidates for type-ahead. It never fails: provider
// errors are logged and produce an empty, uncached list.
func (l *Locator) Suggest(ctx context.Context, query string) []Suggestion {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < minQueryLength {
		return []Suggestion{}
	}

	key := "sug:" + l.byAddress.Name() + ":" + strings.ToLower(q)
	if cached, ok := l.suggestions.Get(key); ok {
		return cached
	}

	places, err := l.byAddress.Search(ctx, q, suggestLimit)
	if err != nil {
		l.logger.Warn("suggest: provider failed", "query", q, "provider", l.byAddress.Name(), "error", err)
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, len(places))
	for _, p := range places {
		if !p.Valid() {
			continue
		}
		out = append(out, Suggestion{Label: p.Label(), ResolvedPlace: p})
	}

	l.suggestions.Set(key, out)
	return out
}

// Resolve turns free text into a place. The name geocoder is tried on the full
// text and then on the part before the first comma; only then the address
// geocoder gets the same two attempts. Provider failures fall through to the
// next attempt.
func (l *Locator) Resolve(ctx context.Context, text string) (ResolvedPlace, error) {
	location := strings.TrimSpace(text)
	if location == "" {
		return ResolvedPlace{}, apperror.InvalidArgument("location required")
	}

	head, hasHead := nameOnly(location)

	type attempt struct {
		provider string
		query    string
		lookup   func(context.Context, string) (ResolvedPlace, error)
	}
	attempts := []attempt{{l.byName.Name(), location, l.byName.SearchName}}
	if hasHead {
		attempts = append(attempts, attempt{l.byName.Name(), head, l.byName.SearchName})
	}
	attempts = append(attempts, attempt{l.byAddress.Name(), location, l.searchFirst})
	if hasHead {
		attempts = append(attempts, attempt{l.byAddress.Name(), head, l.searchFirst})
	}

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return ResolvedPlace{}, err
		}
		place, err := a.lookup(ctx, a.query)
		if err != nil {
			l.logger.Warn("resolve: geocoder failed", "provider", a.provider, "query", a.query, "error", err)
			continue
		}
		if place.Valid() {
			return place, nil
		}
	}

	return ResolvedPlace{}, apperror.NotFound(fmt.Sprintf("place not found: %q", location))
}

func (l *Locator) searchFirst(ctx context.Context, query string) (ResolvedPlace, error) {
	places, err := l.byAddress.Search(ctx, query, 1)
	if err != nil || len(places) == 0 {
		return ResolvedPlace{}, err
	}
	return places[0], nil
}

// nameOnly returns the trimmed text before the first comma when it differs
// from the full input and is long enough to search for.
func nameOnly(location string) (string, bool) {
	head, _, found := strings.Cut(location, ",")
	if !found {
		return "", false
	}
	head = strings.TrimSpace(head)
	if utf8.RuneCountInString(head) < minQueryLength {
		return "", false
	}
	return head, true
}

// reverseKey rounds to three decimals so nearby clicks share an entry.
func reverseKey(provider string, lat, lon float64) string {
	return fmt.Sprintf("rev:%s:%.3f,%.3f", provider, round3(lat), round3(lon))
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
