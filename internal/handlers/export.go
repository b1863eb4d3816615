package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"mileage-logger/internal/export"
)

// HandleExportCSV handles GET /api/v1/export — downloads the last calculation
// as a CSV report
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	result := h.lastResult
	snapshot := *h.session
	h.mu.Unlock()

	if result == nil {
		h.writeError(w, http.StatusConflict, "NO_CALCULATION",
			"Run a calculation before exporting", nil)
		return
	}

	filename := fmt.Sprintf("mileage-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.WriteCSV(w, &snapshot, result); err != nil {
		// Headers are already sent; all we can do is log
		log.Printf("[ERROR] CSV export failed: err=%v", err)
		return
	}

	log.Printf("[HTTP] CSV exported: legs=%d", len(result.Legs))
}
