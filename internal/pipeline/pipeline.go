package pipeline

import (
	"context"
	"fmt"
	"log"

	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/models"
	"mileage-logger/internal/routing"
	"mileage-logger/internal/trips"
)

// probeQuery is the known-good reference query used by the pre-flight
// connectivity check
const probeQuery = "Toronto, ON"

// ErrServiceUnreachable is returned when the pre-flight probe fails; it is
// the only condition that aborts a calculation run.
type ErrServiceUnreachable struct {
	Reason string
}

func (e *ErrServiceUnreachable) Error() string {
	return fmt.Sprintf("connection check failed: %s", e.Reason)
}

// Calculator runs the full distance pipeline over a session. Legs are
// processed strictly sequentially: the router's radius retries carry
// per-attempt state, and sequential calls keep rate-limit consumption
// against the external services bounded.
type Calculator struct {
	geocoder geocoding.Geocoder
	router   routing.Router
}

// NewCalculator creates a pipeline calculator
func NewCalculator(geocoder geocoding.Geocoder, router routing.Router) *Calculator {
	return &Calculator{geocoder: geocoder, router: router}
}

// Calculate builds and routes every leg of every included trip. Individual
// leg failures are absorbed into error-tagged legs with zeroed figures and
// never stop the batch.
func (c *Calculator) Calculate(ctx context.Context, session *models.Session) (*models.CalculationResult, error) {
	// Pre-flight probe: a transport failure here means the geocoding
	// service is unreachable and the whole batch would fail leg by leg
	if _, err := c.geocoder.Search(ctx, probeQuery, 1); err != nil {
		log.Printf("[ERROR] Pre-flight probe failed: err=%v", err)
		return nil, &ErrServiceUnreachable{Reason: err.Error()}
	}

	result := &models.CalculationResult{Legs: []models.Leg{}}

	// Per-run memo so each distinct address is geocoded at most once
	resolved := make(map[string]*models.Coordinates)

	for _, trip := range session.Trips {
		if !trip.Included {
			continue
		}

		for _, leg := range trips.BuildLegs(trip, session.HomeAddress) {
			c.processLeg(ctx, &leg, session.PricePerKm, resolved)
			if leg.Error == "" {
				result.TotalDistanceKm += leg.DistanceKm
				result.TotalReimbursement += leg.Reimbursement
			}
			result.Legs = append(result.Legs, leg)
		}
	}

	result.TotalDistanceKm = models.RoundMoney(result.TotalDistanceKm)
	result.TotalReimbursement = models.RoundMoney(result.TotalReimbursement)

	log.Printf("[PIPELINE] Calculation complete: legs=%d total_km=%.2f total=%.2f",
		len(result.Legs), result.TotalDistanceKm, result.TotalReimbursement)

	return result, nil
}

// processLeg resolves missing coordinates and routes a single leg in place.
// Failures are recorded on the leg, never returned.
func (c *Calculator) processLeg(ctx context.Context, leg *models.Leg, pricePerKm float64, resolved map[string]*models.Coordinates) {
	from, err := c.resolveCoords(ctx, leg.From, leg.FromCoords, resolved)
	if err != nil {
		c.failLeg(leg, err)
		return
	}
	leg.FromCoords = from

	to, err := c.resolveCoords(ctx, leg.To, leg.ToCoords, resolved)
	if err != nil {
		c.failLeg(leg, err)
		return
	}
	leg.ToCoords = to

	route, err := c.router.Route(ctx, *from, *to)
	if err != nil {
		c.failLeg(leg, err)
		return
	}

	leg.DistanceKm = route.DistanceKm
	leg.DurationMin = route.DurationMin
	leg.UsedFallback = route.UsedFallback
	leg.Reimbursement = models.RoundMoney(route.DistanceKm * pricePerKm)
}

// resolveCoords returns known coordinates or geocodes the address using the
// first candidate only. This single-shot resolution is deliberately distinct
// from interactive verification: no relaxation chain runs here.
func (c *Calculator) resolveCoords(ctx context.Context, address string, known *models.Coordinates, resolved map[string]*models.Coordinates) (*models.Coordinates, error) {
	if known != nil {
		return known, nil
	}
	if coords, ok := resolved[address]; ok {
		if coords == nil {
			return nil, fmt.Errorf("no coordinates found for %q", address)
		}
		return coords, nil
	}

	candidates, err := c.geocoder.Search(ctx, address, 1)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", address, err)
	}
	if len(candidates) == 0 {
		resolved[address] = nil
		return nil, fmt.Errorf("no coordinates found for %q", address)
	}

	coords := candidates[0].Coords
	resolved[address] = &coords
	return &coords, nil
}

func (c *Calculator) failLeg(leg *models.Leg, err error) {
	log.Printf("[PIPELINE] Leg failed: trip=%d from=%s to=%s err=%v", leg.TripNumber, leg.From, leg.To, err)
	leg.DistanceKm = 0
	leg.DurationMin = 0
	leg.Reimbursement = 0
	leg.UsedFallback = false
	leg.Error = err.Error()
}

// RecomputeTotals sums distance and reimbursement over non-error legs
func RecomputeTotals(legs []models.Leg) (totalDistanceKm, totalReimbursement float64) {
	for _, leg := range legs {
		if leg.Error != "" {
			continue
		}
		totalDistanceKm += leg.DistanceKm
		totalReimbursement += leg.Reimbursement
	}
	return models.RoundMoney(totalDistanceKm), models.RoundMoney(totalReimbursement)
}

// OverrideLegDistance applies a manual post-calculation distance edit to the
// leg at index, clearing any error tag and recomputing its reimbursement
func OverrideLegDistance(legs []models.Leg, index int, distanceKm, pricePerKm float64) error {
	if index < 0 || index >= len(legs) {
		return fmt.Errorf("leg index %d out of range", index)
	}
	if distanceKm < 0 {
		return fmt.Errorf("distance must not be negative")
	}

	legs[index].DistanceKm = distanceKm
	legs[index].Reimbursement = models.RoundMoney(distanceKm * pricePerKm)
	legs[index].Error = ""
	return nil
}

// Reprice recomputes every non-error leg's reimbursement for a new price
func Reprice(legs []models.Leg, pricePerKm float64) {
	for i := range legs {
		if legs[i].Error != "" {
			continue
		}
		legs[i].Reimbursement = models.RoundMoney(legs[i].DistanceKm * pricePerKm)
	}
}
