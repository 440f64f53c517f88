package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves the in-memory aggregate.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// maxTopQueries caps the top parameter.
const maxTopQueries = 1000

// Stats writes the current aggregate. An optional top=N parameter sets how
// many entries each query list holds, up to maxTopQueries.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	n := DefaultTopQueries
	if raw := r.URL.Query().Get("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		n = min(parsed, maxTopQueries)
	}
	h.write(w, http.StatusOK, h.aggregator.StatsTop(n))
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
