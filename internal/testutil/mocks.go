package testutil

import (
	"context"
	"fmt"
	"math"

	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/models"
	"mileage-logger/internal/routing"
)

// MockGeocoder is a scripted geocoder for testing. Unscripted queries return
// empty results (service ran, found nothing).
type MockGeocoder struct {
	Results map[string][]models.AddressCandidate
	Fail    map[string]bool
	FailAll bool
	Queries []string
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		Results: make(map[string][]models.AddressCandidate),
		Fail:    make(map[string]bool),
	}
}

// SetResult scripts candidates for a query
func (m *MockGeocoder) SetResult(query string, candidates ...models.AddressCandidate) {
	m.Results[query] = candidates
}

// SetFail makes a specific query fail with a transport error
func (m *MockGeocoder) SetFail(query string) {
	m.Fail[query] = true
}

func (m *MockGeocoder) Search(ctx context.Context, query string, limit int) ([]models.AddressCandidate, error) {
	m.Queries = append(m.Queries, query)

	if m.FailAll || m.Fail[query] {
		return nil, &geocoding.ErrSearchFailed{Query: query, Reason: "mock transport failure"}
	}

	candidates := m.Results[query]
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.AddressCandidate, len(candidates))
	copy(out, candidates)
	return out, nil
}

// RouteCall tracks a call to the mock router
type RouteCall struct {
	Origin models.Coordinates
	Dest   models.Coordinates
}

// MockRouter is a scripted router. Unscripted pairs get a scaled Euclidean
// distance so tests stay deterministic without real routing.
type MockRouter struct {
	Overrides map[string]*routing.RouteResult
	Errors    map[string]error
	Calls     []RouteCall
}

func NewMockRouter() *MockRouter {
	return &MockRouter{
		Overrides: make(map[string]*routing.RouteResult),
		Errors:    make(map[string]error),
	}
}

func (m *MockRouter) makeKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", origin.Lat, origin.Lng, dest.Lat, dest.Lng)
}

// SetRoute scripts a result for an origin-destination pair
func (m *MockRouter) SetRoute(origin, dest models.Coordinates, distanceKm, durationMin float64) {
	m.Overrides[m.makeKey(origin, dest)] = &routing.RouteResult{
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
	}
}

// SetError makes a specific pair fail
func (m *MockRouter) SetError(origin, dest models.Coordinates, err error) {
	m.Errors[m.makeKey(origin, dest)] = err
}

func (m *MockRouter) Route(ctx context.Context, origin, dest models.Coordinates) (*routing.RouteResult, error) {
	m.Calls = append(m.Calls, RouteCall{Origin: origin, Dest: dest})

	key := m.makeKey(origin, dest)
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	if override, ok := m.Overrides[key]; ok {
		result := *override
		return &result, nil
	}

	if models.SamePoint(origin, dest) {
		return &routing.RouteResult{}, nil
	}

	// 1 degree ~ 111 km
	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	km := models.RoundMoney(111 * math.Sqrt(dLat*dLat+dLng*dLng))
	return &routing.RouteResult{
		DistanceKm:  km,
		DurationMin: models.RoundMoney(km * 1.2),
	}, nil
}
