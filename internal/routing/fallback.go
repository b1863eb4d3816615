package routing

import (
	"github.com/golang/geo/s2"

	"mileage-logger/internal/models"
)

const (
	// earthRadiusKm is the mean Earth radius used for great-circle distances
	earthRadiusKm = 6371.0

	// fallbackMinutesPerKm estimates driving duration when no routed
	// duration is available
	fallbackMinutesPerKm = 2.0
)

// HaversineKm returns the great-circle distance between two points in
// kilometers
func HaversineKm(origin, dest models.Coordinates) float64 {
	p1 := s2.LatLngFromDegrees(origin.Lat, origin.Lng)
	p2 := s2.LatLngFromDegrees(dest.Lat, dest.Lng)
	return p1.Distance(p2).Radians() * earthRadiusKm
}

// fallbackResult builds a straight-line substitute for an unroutable pair
func fallbackResult(origin, dest models.Coordinates) *RouteResult {
	km := HaversineKm(origin, dest)
	return &RouteResult{
		DistanceKm:   models.RoundMoney(km),
		DurationMin:  models.RoundMoney(km * fallbackMinutesPerKm),
		UsedFallback: true,
	}
}
