package model

import "time"

// Stage is a state of the pipeline state machine.
type Stage string

const (
	StageInit              Stage = "INIT"
	StagePatternAnalysis   Stage = "PATTERN_ANALYSIS"
	StageForecasting       Stage = "FORECASTING"
	StageOptimization      Stage = "OPTIMIZATION"
	StageAnomalyDetection  Stage = "ANOMALY_DETECTION"
	StageContextEnrichment Stage = "CONTEXT_ENRICHMENT"
	StageSynthesis         Stage = "SYNTHESIS"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// RunStatus is the terminal outcome of a run.
type RunStatus string

const (
	RunDone   RunStatus = "DONE"
	RunFailed RunStatus = "FAILED"
)

// StageMetrics are the per-worker performance figures. ResourceUsage is
// the busy share of the fan-out pool in percent, MemoryUsage the heap
// in use as a percent of heap obtained from the OS.
type StageMetrics struct {
	Accuracy      float64 `json:"accuracy"`
	Throughput    float64 `json:"throughput"`
	ResourceUsage float64 `json:"resource_usage"`
	MemoryUsage   float64 `json:"memory_usage"`
}

// StageReport records how one stage went.
type StageReport struct {
	Stage      Stage         `json:"stage"`
	WorkerID   string        `json:"worker_id"`
	Success    bool          `json:"success"`
	Skipped    bool          `json:"skipped"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Metrics    StageMetrics  `json:"metrics"`
}

// RunResult is the output of one pipeline run.
type RunResult struct {
	RunID            string               `json:"run_id"`
	Status           RunStatus            `json:"status"`
	FailedStage      Stage                `json:"failed_stage,omitempty"`
	Error            string               `json:"error,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       time.Time            `json:"finished_at"`
	Params           RunParams            `json:"params"`
	DemandPatterns   []DemandPattern      `json:"demand_patterns"`
	Segments         []ProductSegment     `json:"segments"`
	Forecasts        ForecastSet          `json:"forecasts"`
	Optimization     []OptimizationResult `json:"optimization_results"`
	Anomalies        []AnomalyResult      `json:"anomalies"`
	Alerts           []Alert              `json:"alerts"`
	Recommendations  []Recommendation     `json:"recommendations"`
	KPIs             KPIs                 `json:"kpis"`
	MarketContext    *MarketContext       `json:"market_context,omitempty"`
	ExecutionSummary string               `json:"execution_summary"`
	Stages           []StageReport        `json:"stages"`
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// DegradedStages lists stages that did not succeed.
func (r *RunResult) DegradedStages() []Stage {
	var out []Stage
	for _, s := range r.Stages {
		if !s.Success {
			out = append(out, s.Stage)
		}
	}
	return out
}

// Report returns the report of a given stage.
func (r *RunResult) Report(stage Stage) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageReport{}, false
}
