package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTopQueries = 100

// StatsHandler serves GET /api/v1/analytics. The optional top parameter sets
// how many popular and zero-result queries the report lists.
func StatsHandler(agg *Aggregator) http.HandlerFunc {
	logger := slog.Default().With("component", "analytics")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		top := defaultTopQueries
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxTopQueries {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{
					"error": fmt.Sprintf("top must be an integer in [1, %d]", maxTopQueries),
				})
				return
			}
			top = n
		}

		if err := json.NewEncoder(w).Encode(agg.StatsTop(top)); err != nil {
			logger.Warn("analytics report not written", "error", err)
		}
	}
}
