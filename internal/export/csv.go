package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"mileage-logger/internal/models"
	"mileage-logger/internal/pipeline"
)

// WriteCSV serializes a calculation into a tabular report: one row per leg,
// a subtotal row per trip, and a grand total row.
func WriteCSV(w io.Writer, session *models.Session, result *models.CalculationResult) error {
	cw := csv.NewWriter(w)

	header := []string{"Trip", "From", "To", "Distance (km)", "Duration (min)", "Reimbursement", "Note"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	currentTrip := 0
	var tripKm, tripAmount float64

	writeSubtotal := func() error {
		if currentTrip == 0 {
			return nil
		}
		row := []string{
			fmt.Sprintf("Trip %d total", currentTrip), "", "",
			fmt.Sprintf("%.2f", models.RoundMoney(tripKm)), "",
			fmt.Sprintf("%.2f", models.RoundMoney(tripAmount)), "",
		}
		return cw.Write(row)
	}

	for _, leg := range result.Legs {
		if leg.TripNumber != currentTrip {
			if err := writeSubtotal(); err != nil {
				return fmt.Errorf("failed to write subtotal: %w", err)
			}
			currentTrip = leg.TripNumber
			tripKm, tripAmount = 0, 0
		}

		note := ""
		if leg.Error != "" {
			note = "error: " + leg.Error
		} else if leg.UsedFallback {
			note = "straight-line estimate"
		}

		row := []string{
			fmt.Sprintf("%d", leg.TripNumber),
			leg.From,
			leg.To,
			fmt.Sprintf("%.2f", leg.DistanceKm),
			fmt.Sprintf("%.2f", leg.DurationMin),
			fmt.Sprintf("%.2f", leg.Reimbursement),
			note,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write leg row: %w", err)
		}

		if leg.Error == "" {
			tripKm += leg.DistanceKm
			tripAmount += leg.Reimbursement
		}
	}

	if err := writeSubtotal(); err != nil {
		return fmt.Errorf("failed to write subtotal: %w", err)
	}

	totalKm, totalAmount := pipeline.RecomputeTotals(result.Legs)
	totalRow := []string{
		"Grand total", "", "",
		fmt.Sprintf("%.2f", totalKm),
		"",
		fmt.Sprintf("%.2f", totalAmount),
		fmt.Sprintf("at %.2f per km", session.PricePerKm),
	}
	if err := cw.Write(totalRow); err != nil {
		return fmt.Errorf("failed to write total row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
