package weather

import (
	"context"
	"sync"
)

type fakeNameGeocoder struct {
	mu      sync.Mutex
	results map[string]ResolvedPlace
	errs    map[string]error
	calls   []string
}

func (f *fakeNameGeocoder) Name() string { return SourceOpenMeteo }

func (f *fakeNameGeocoder) SearchName(_ context.Context, name string) (ResolvedPlace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return ResolvedPlace{}, err
	}
	return f.results[name], nil
}

type fakeAddressGeocoder struct {
	mu           sync.Mutex
	reverse      ResolvedPlace
	reverseErr   error
	reverseCalls int
	search       map[string][]ResolvedPlace
	searchErr    error
	searchCalls  []string
	searchLimits []int
}

func (f *fakeAddressGeocoder) Name() string { return SourceNominatim }

func (f *fakeAddressGeocoder) Reverse(_ context.Context, _, _ float64) (ResolvedPlace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverseCalls++
	return f.reverse, f.reverseErr
}

func (f *fakeAddressGeocoder) Search(_ context.Context, query string, limit int) ([]ResolvedPlace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, query)
	f.searchLimits = append(f.searchLimits, limit)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search[query], nil
}

type fakeForecast struct {
	mu     sync.Mutex
	result Conditions
	err    error
	calls  int
}

func (f *fakeForecast) Name() string { return "openmeteo" }

func (f *fakeForecast) Current(_ context.Context, _, _ float64) (Conditions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}
