package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/valentinpelus/voiceboard/pkg/feedback"
	"github.com/valentinpelus/voiceboard/pkg/stats"
)

const maxSeriesDays = 90

// StatsHandler serves the statistics and trends tabs
type StatsHandler struct {
	store *feedback.Store
	now   func() time.Time
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store *feedback.Store) *StatsHandler {
	return &StatsHandler{store: store, now: time.Now}
}

// TrendsResponse bundles the series the trends tab charts
type TrendsResponse struct {
	Monthly []stats.Bucket     `json:"monthly"`
	ByType  []stats.MonthTypes `json:"byType"`
	Daily   []stats.DayBucket  `json:"daily"`
}

// Summary handles GET /api/stats/summary
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stats.Summarize(h.store.All()))
}

// Types handles GET /api/stats/types; sort=count orders by descending count
func (h *StatsHandler) Types(w http.ResponseWriter, r *http.Request) {
	buckets := stats.TypeHistogram(h.store.All())
	if r.URL.Query().Get("sort") == "count" {
		buckets = stats.SortedByCount(buckets)
	}
	writeJSON(w, http.StatusOK, buckets)
}

// Monthly handles GET /api/stats/monthly
func (h *StatsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stats.MonthlyHistogram(h.store.All()))
}

// Daily handles GET /api/stats/daily?days=N
func (h *StatsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days := stats.WindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSeriesDays {
			writeError(w, http.StatusBadRequest, CodeValidation, "days must be between 1 and "+strconv.Itoa(maxSeriesDays))
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, stats.RollingSeries(h.store.All(), h.now(), days))
}

// Trends handles GET /api/stats/trends
func (h *StatsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	records := h.store.All()
	writeJSON(w, http.StatusOK, TrendsResponse{
		Monthly: stats.MonthlyHistogram(records),
		ByType:  stats.MonthlyByType(records),
		Daily:   stats.RollingSeries(records, h.now(), stats.WindowDays),
	})
}
