package anomaly

import (
	"sync"
	"time"

	"DemandSentinel/internal/model"
)

// DefaultHistorySize is the number of anomalies retained when no size is given.
const DefaultHistorySize = 1000

// History is a fixed-capacity ring of past anomalies. Once full, each Add
// overwrites the oldest entry.
type History struct {
	mu    sync.Mutex
	size  int
	items []model.AnomalyResult
	index int
	count int
}

// NewHistory creates a ring holding at most size anomalies.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:  size,
		items: make([]model.AnomalyResult, size),
	}
}

// Add appends anomalies in order.
func (h *History) Add(results ...model.AnomalyResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range results {
		h.items[h.index] = r
		h.index = (h.index + 1) % h.size
		if h.count < h.size {
			h.count++
		}
	}
}

// Len returns how many anomalies are held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Snapshot returns the held anomalies from oldest to newest.
func (h *History) Snapshot() []model.AnomalyResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.AnomalyResult, 0, h.count)
	start := 0
	if h.count == h.size {
		start = h.index
	}
	for i := 0; i < h.count; i++ {
		out = append(out, h.items[(start+i)%h.size])
	}
	return out
}

// Trend labels for HistoryStats.
const (
	TrendIncreasing = "INCREASING"
	TrendDecreasing = "DECREASING"
	TrendStable     = "STABLE"
)

// HistoryStats summarizes the retained anomalies.
type HistoryStats struct {
	Total                 int                       `json:"total"`
	ByType                map[model.AnomalyType]int `json:"by_type"`
	BySeverity            map[model.Severity]int    `json:"by_severity"`
	Trend                 string                    `json:"trend"`
	FalsePositiveEstimate float64                   `json:"false_positive_estimate"`
}

// Stats computes counts and the week-over-week trend as of now.
func (h *History) Stats(now time.Time) HistoryStats {
	items := h.Snapshot()
	stats := HistoryStats{
		Total:      len(items),
		ByType:     make(map[model.AnomalyType]int),
		BySeverity: make(map[model.Severity]int),
		Trend:      TrendStable,
	}
	if len(items) == 0 {
		return stats
	}

	lastWeek := now.AddDate(0, 0, -7)
	prevWeek := now.AddDate(0, 0, -14)
	var recent, previous, low int
	for _, a := range items {
		stats.ByType[a.AnomalyType]++
		stats.BySeverity[a.Severity]++
		if a.Severity == model.SeverityLow {
			low++
		}
		switch {
		case a.DetectedAt.After(lastWeek) && !a.DetectedAt.After(now):
			recent++
		case a.DetectedAt.After(prevWeek) && !a.DetectedAt.After(lastWeek):
			previous++
		}
	}

	switch {
	case float64(recent) > 1.2*float64(previous):
		stats.Trend = TrendIncreasing
	case float64(recent) < 0.8*float64(previous):
		stats.Trend = TrendDecreasing
	}
	stats.FalsePositiveEstimate = float64(low) / float64(len(items))
	return stats
}
