// Package optimizer reviews accumulated run telemetry and recommends
// threshold and parameter changes. It never changes configuration itself.
package optimizer

import (
	"time"

	"DemandSentinel/internal/model"
)

// StageSample is the telemetry of one stage in one run.
type StageSample struct {
	Stage         model.Stage   `json:"stage"`
	WorkerID      string        `json:"worker_id"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	Skipped       bool          `json:"skipped"`
	Accuracy      float64       `json:"accuracy"`
	ResourceUsage float64       `json:"resource_usage"`
	MemoryUsage   float64       `json:"memory_usage"`
}

// RunTelemetry condenses one run for the optimizer.
type RunTelemetry struct {
	RunID                 string                 `json:"run_id"`
	Status                model.RunStatus        `json:"status"`
	FinishedAt            time.Time              `json:"finished_at"`
	Stages                []StageSample          `json:"stages"`
	Alerts                int                    `json:"alerts"`
	StockoutAlerts        int                    `json:"stockout_alerts"`
	SeverityMix           map[model.Severity]int `json:"severity_mix"`
	Patterns              int                    `json:"patterns"`
	MeanPatternConfidence float64                `json:"mean_pattern_confidence"`
	ShortTermForecasts    int                    `json:"short_term_forecasts"`
	MeanForecastAccuracy  float64                `json:"mean_forecast_accuracy"`
	Params                model.RunParams        `json:"params"`
}

// TelemetryFrom extracts the telemetry of a finished run.
func TelemetryFrom(r *model.RunResult) RunTelemetry {
	t := RunTelemetry{
		RunID:       r.RunID,
		Status:      r.Status,
		FinishedAt:  r.FinishedAt,
		Alerts:      len(r.Alerts),
		SeverityMix: make(map[model.Severity]int),
		Patterns:    len(r.DemandPatterns),
		Params:      r.Params,
	}
	for _, s := range r.Stages {
		t.Stages = append(t.Stages, StageSample{
			Stage:         s.Stage,
			WorkerID:      s.WorkerID,
			Duration:      s.Duration,
			Success:       s.Success,
			Skipped:       s.Skipped,
			Accuracy:      s.Metrics.Accuracy,
			ResourceUsage: s.Metrics.ResourceUsage,
			MemoryUsage:   s.Metrics.MemoryUsage,
		})
	}
	for _, a := range r.Alerts {
		t.SeverityMix[a.Severity]++
		if a.Type == model.AlertStockoutRisk {
			t.StockoutAlerts++
		}
	}
	if len(r.DemandPatterns) > 0 {
		sum := 0.0
		for _, p := range r.DemandPatterns {
			sum += p.Confidence
		}
		t.MeanPatternConfidence = sum / float64(len(r.DemandPatterns))
	}
	if n := len(r.Forecasts.ShortTerm); n > 0 {
		sum := 0.0
		for _, f := range r.Forecasts.ShortTerm {
			sum += f.AccuracyScore
		}
		t.ShortTermForecasts = n
		t.MeanForecastAccuracy = sum / float64(n)
	}
	return t
}
