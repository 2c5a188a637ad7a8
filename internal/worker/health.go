package worker

import (
	"sync"
	"time"
)

// HealthWindow is the number of recent executions a tracker remembers.
const HealthWindow = 100

// HealthStatus is the coarse state of a worker.
type HealthStatus string

const (
	StatusHealthy HealthStatus = "HEALTHY"
	StatusWarning HealthStatus = "WARNING"
	StatusError   HealthStatus = "ERROR"
)

// Targets are the performance expectations of one worker.
type Targets struct {
	MaxExecutionTime time.Duration
	MinAccuracy      float64
	MaxErrorRate     float64
}

// DefaultTargets returns the stock targets keyed by worker id.
func DefaultTargets() map[string]Targets {
	return map[string]Targets{
		PatternID:  {MaxExecutionTime: 10 * time.Second, MinAccuracy: 0.80, MaxErrorRate: 0.05},
		ForecastID: {MaxExecutionTime: 15 * time.Second, MinAccuracy: 0.75, MaxErrorRate: 0.05},
		OptimizeID: {MaxExecutionTime: 10 * time.Second, MinAccuracy: 0.80, MaxErrorRate: 0.05},
		AnomalyID:  {MaxExecutionTime: 10 * time.Second, MinAccuracy: 0.85, MaxErrorRate: 0.05},
		EnrichID:   {MaxExecutionTime: 20 * time.Second, MinAccuracy: 0.80, MaxErrorRate: 0.05},
	}
}

type sample struct {
	confidence float64
	failed     bool
}

// HealthReport is a point-in-time view of a tracker.
type HealthReport struct {
	WorkerID       string        `json:"worker_id"`
	Status         HealthStatus  `json:"status"`
	ErrorRate      float64       `json:"error_rate"`
	MeanConfidence float64       `json:"mean_confidence"`
	Samples        int           `json:"samples"`
	Executions     int           `json:"executions"`
	LastDuration   time.Duration `json:"last_duration"`
}

// HealthTracker keeps the last HealthWindow outcomes of a worker.
type HealthTracker struct {
	mu           sync.Mutex
	workerID     string
	targets      Targets
	window       []sample
	executions   int
	lastDuration time.Duration
}

// NewHealthTracker creates a tracker for one worker.
func NewHealthTracker(workerID string, targets Targets) *HealthTracker {
	return &HealthTracker{workerID: workerID, targets: targets}
}

// Record adds one execution outcome.
func (h *HealthTracker) Record(success bool, confidence float64, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.window = append(h.window, sample{confidence: confidence, failed: !success})
	if len(h.window) > HealthWindow {
		h.window = h.window[len(h.window)-HealthWindow:]
	}
	h.executions++
	h.lastDuration = d
}

// Report evaluates the window against the targets.
func (h *HealthTracker) Report() HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := HealthReport{
		WorkerID:     h.workerID,
		Status:       StatusHealthy,
		Samples:      len(h.window),
		Executions:   h.executions,
		LastDuration: h.lastDuration,
	}
	if len(h.window) == 0 {
		return r
	}
	errs := 0
	sum := 0.0
	for _, s := range h.window {
		if s.failed {
			errs++
		}
		sum += s.confidence
	}
	r.ErrorRate = float64(errs) / float64(max(len(h.window), 1))
	r.MeanConfidence = sum / float64(len(h.window))

	switch {
	case r.ErrorRate > h.targets.MaxErrorRate:
		r.Status = StatusError
	case r.MeanConfidence < h.targets.MinAccuracy:
		r.Status = StatusWarning
	}
	return r
}

// Status is shorthand for Report().Status.
func (h *HealthTracker) Status() HealthStatus { return h.Report().Status }
