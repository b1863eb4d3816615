package trips

import (
	"errors"
	"fmt"

	"mileage-logger/internal/models"
)

// ErrNoPendingStops is returned when a trip is finalized with nothing in it
var ErrNoPendingStops = errors.New("no pending stops to add")

// BuildLegs renders a trip into its ordered (from, to) segments:
// home -> stops[0] -> ... -> stops[n-1] -> home (the last only when the trip
// returns home). A zero-stop returns-home trip yields the degenerate
// home-to-home leg; the router short-circuits it to zero distance.
func BuildLegs(trip models.Trip, homeAddress string) []models.Leg {
	points := make([]models.Stop, 0, len(trip.Stops)+2)
	points = append(points, models.Stop{Address: homeAddress})
	points = append(points, trip.Stops...)
	if trip.ReturnsHome {
		points = append(points, models.Stop{Address: homeAddress})
	}

	if len(points) < 2 {
		return []models.Leg{}
	}

	legs := make([]models.Leg, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		legs = append(legs, models.Leg{
			TripNumber: trip.Number,
			From:       points[i].Address,
			To:         points[i+1].Address,
			FromCoords: points[i].Coords,
			ToCoords:   points[i+1].Coords,
		})
	}

	return legs
}

// Renumber reassigns trip numbers densely from 1
func Renumber(session *models.Session) {
	for i := range session.Trips {
		session.Trips[i].Number = i + 1
	}
}

// AddTrip finalizes the pending stops into a new trip and clears them
func AddTrip(session *models.Session, returnsHome bool) (*models.Trip, error) {
	if len(session.PendingStops) == 0 {
		return nil, ErrNoPendingStops
	}

	trip := models.Trip{
		Stops:       session.PendingStops,
		ReturnsHome: returnsHome,
		Included:    true,
	}
	session.Trips = append(session.Trips, trip)
	session.PendingStops = []models.Stop{}
	Renumber(session)

	return &session.Trips[len(session.Trips)-1], nil
}

// RemoveTrip deletes the trip with the given number and renumbers the rest
func RemoveTrip(session *models.Session, number int) error {
	for i, trip := range session.Trips {
		if trip.Number == number {
			session.Trips = append(session.Trips[:i], session.Trips[i+1:]...)
			Renumber(session)
			return nil
		}
	}
	return fmt.Errorf("trip %d not found", number)
}

// FindTrip returns a pointer to the trip with the given number, or nil
func FindTrip(session *models.Session, number int) *models.Trip {
	for i := range session.Trips {
		if session.Trips[i].Number == number {
			return &session.Trips[i]
		}
	}
	return nil
}

// SetIncluded toggles whether a trip participates in calculation
func SetIncluded(session *models.Session, number int, included bool) error {
	trip := FindTrip(session, number)
	if trip == nil {
		return fmt.Errorf("trip %d not found", number)
	}
	trip.Included = included
	return nil
}

// SetReturnsHome toggles the trailing home leg of a trip
func SetReturnsHome(session *models.Session, number int, returnsHome bool) error {
	trip := FindTrip(session, number)
	if trip == nil {
		return fmt.Errorf("trip %d not found", number)
	}
	trip.ReturnsHome = returnsHome
	return nil
}

// AddPendingStop appends a stop to the trip currently being built
func AddPendingStop(session *models.Session, stop models.Stop) {
	session.PendingStops = append(session.PendingStops, stop)
}

// RemovePendingStop removes the pending stop at the given index
func RemovePendingStop(session *models.Session, index int) error {
	if index < 0 || index >= len(session.PendingStops) {
		return fmt.Errorf("pending stop index %d out of range", index)
	}
	session.PendingStops = append(session.PendingStops[:index], session.PendingStops[index+1:]...)
	return nil
}

// MoveStop reorders a stop within a trip (visiting order is stop order)
func MoveStop(session *models.Session, number, from, to int) error {
	trip := FindTrip(session, number)
	if trip == nil {
		return fmt.Errorf("trip %d not found", number)
	}
	if from < 0 || from >= len(trip.Stops) || to < 0 || to >= len(trip.Stops) {
		return fmt.Errorf("stop index out of range")
	}
	if from == to {
		return nil
	}

	stop := trip.Stops[from]
	trip.Stops = append(trip.Stops[:from], trip.Stops[from+1:]...)
	trip.Stops = append(trip.Stops[:to], append([]models.Stop{stop}, trip.Stops[to:]...)...)
	return nil
}
