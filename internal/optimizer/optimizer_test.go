package optimizer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

var now = time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

func quietRun() RunTelemetry {
	return RunTelemetry{
		RunID:                 "r",
		Status:                model.RunDone,
		Alerts:                2,
		SeverityMix:           map[model.Severity]int{model.SeverityHigh: 2},
		Patterns:              3,
		MeanPatternConfidence: 0.9,
		ShortTermForecasts:    7,
		MeanForecastAccuracy:  0.9,
		Params:                model.DefaultRunParams(),
		Stages: []StageSample{
			{WorkerID: worker.PatternID, Duration: time.Second, Success: true, Accuracy: 0.9, ResourceUsage: 40, MemoryUsage: 50},
		},
	}
}

func components(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Component
	}
	return out
}

func TestAnalyze_NoRuns(t *testing.T) {
	rep := Analyze(nil, DefaultTargets(), now)
	assert.Empty(t, rep.Recommendations)
	assert.Equal(t, 0.8, rep.Confidence)
}

func TestAnalyze_HealthyRun(t *testing.T) {
	rep := Analyze([]RunTelemetry{quietRun()}, DefaultTargets(), now)
	assert.Empty(t, rep.Recommendations)
	assert.Empty(t, rep.Bottlenecks)
	assert.Contains(t, rep.Summary, "no tuning needed")
}

func TestAnalyze_Rules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *RunTelemetry)
		component string
		typ       RecommendationType
		priority  model.Priority
		current   float64
		want      float64
	}{
		{
			name:      "alert volume",
			mutate:    func(r *RunTelemetry) { r.Alerts = 16; r.SeverityMix = map[model.Severity]int{model.SeverityHigh: 16} },
			component: "anomaly_threshold", typ: ThresholdAdjustment, priority: model.PriorityHigh, current: 2.0, want: 2.5,
		},
		{
			name: "false positives",
			mutate: func(r *RunTelemetry) {
				r.SeverityMix = map[model.Severity]int{model.SeverityLow: 1, model.SeverityHigh: 1}
			},
			component: "forecast_deviation_factor", typ: ThresholdAdjustment, priority: model.PriorityMedium, current: 2.0, want: 2.1,
		},
		{
			name:      "stockouts",
			mutate:    func(r *RunTelemetry) { r.StockoutAlerts = 2 },
			component: "safety_stock_multiplier", typ: ParameterTuning, priority: model.PriorityHigh, current: 1.0, want: 1.2,
		},
		{
			name:      "slow stage",
			mutate:    func(r *RunTelemetry) { r.Stages[0].Duration = 7500 * time.Millisecond },
			component: "pattern_execution_time_ms", typ: AlgorithmOptimization, priority: model.PriorityMedium, current: 7500, want: 6000,
		},
		{
			name:      "inaccurate stage",
			mutate:    func(r *RunTelemetry) { r.Stages[0].Accuracy = 0.5 },
			component: "pattern_accuracy", typ: ParameterTuning, priority: model.PriorityHigh, current: 0.5, want: 0.8,
		},
		{
			name:      "saturated pool",
			mutate:    func(r *RunTelemetry) { r.Stages[0].ResourceUsage = 95 },
			component: "worker_pool_utilization", typ: ResourceAllocation, priority: model.PriorityCritical, current: 95, want: 70,
		},
		{
			name:      "heap pressure",
			mutate:    func(r *RunTelemetry) { r.Stages[0].MemoryUsage = 90 },
			component: "memory_usage", typ: ResourceAllocation, priority: model.PriorityHigh, current: 90, want: 75,
		},
		{
			name:      "weak patterns",
			mutate:    func(r *RunTelemetry) { r.MeanPatternConfidence = 0.6 },
			component: "baseline_window_days", typ: ParameterTuning, priority: model.PriorityMedium, current: 90, want: 120,
		},
		{
			name:      "weak forecasts",
			mutate:    func(r *RunTelemetry) { r.MeanForecastAccuracy = 0.7 },
			component: "forecast_ensemble_size", typ: AlgorithmOptimization, priority: model.PriorityHigh, current: 1, want: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := quietRun()
			tt.mutate(&run)
			rep := Analyze([]RunTelemetry{run}, DefaultTargets(), now)
			require.Len(t, rep.Recommendations, 1, components(rep.Recommendations))
			r := rep.Recommendations[0]
			assert.Equal(t, tt.component, r.Component)
			assert.Equal(t, tt.typ, r.Type)
			assert.Equal(t, tt.priority, r.Priority)
			assert.InDelta(t, tt.current, r.CurrentValue, 1e-9)
			assert.InDelta(t, tt.want, r.RecommendedValue, 1e-9)
		})
	}
}

func TestAnalyze_OrderAndBottlenecks(t *testing.T) {
	run := quietRun()
	run.StockoutAlerts = 1
	run.Stages[0].Duration = 9 * time.Second
	run.Stages[0].ResourceUsage = 99
	run.MeanPatternConfidence = 0.5

	rep := Analyze([]RunTelemetry{run}, DefaultTargets(), now)
	assert.Equal(t, []string{
		"worker_pool_utilization",
		"safety_stock_multiplier",
		"pattern_execution_time_ms",
		"baseline_window_days",
	}, components(rep.Recommendations))
	assert.Equal(t, []string{worker.PatternID}, rep.Bottlenecks)
	// 0.7 + critical 0.1 + three gains above 15
	assert.InDelta(t, 0.95, rep.Confidence, 1e-9)
	assert.Contains(t, rep.Summary, "1. [CRITICAL] worker_pool_utilization")
}

func TestAnalyze_IgnoresSkippedStages(t *testing.T) {
	run := quietRun()
	run.Stages = append(run.Stages, StageSample{WorkerID: worker.EnrichID, Skipped: true})
	rep := Analyze([]RunTelemetry{run}, DefaultTargets(), now)
	assert.Empty(t, rep.Recommendations)
}

func TestTelemetryFrom(t *testing.T) {
	res := &model.RunResult{
		RunID:  "run-1",
		Status: model.RunDone,
		Params: model.DefaultRunParams(),
		Alerts: []model.Alert{
			{Type: model.AlertStockoutRisk, Severity: model.SeverityCritical},
			{Type: model.AlertOverstock, Severity: model.SeverityLow},
		},
		DemandPatterns: []model.DemandPattern{{Confidence: 0.6}, {Confidence: 0.8}},
		Forecasts:      model.ForecastSet{ShortTerm: []model.ForecastResult{{AccuracyScore: 0.5}, {AccuracyScore: 0.7}}},
		Stages: []model.StageReport{
			{Stage: model.StagePatternAnalysis, WorkerID: worker.PatternID, Success: true, Duration: time.Second,
				Metrics: model.StageMetrics{Accuracy: 0.9, ResourceUsage: 30, MemoryUsage: 60}},
		},
	}
	tel := TelemetryFrom(res)
	assert.Equal(t, 2, tel.Alerts)
	assert.Equal(t, 1, tel.StockoutAlerts)
	assert.Equal(t, 1, tel.SeverityMix[model.SeverityLow])
	assert.InDelta(t, 0.7, tel.MeanPatternConfidence, 1e-9)
	assert.InDelta(t, 0.6, tel.MeanForecastAccuracy, 1e-9)
	require.Len(t, tel.Stages, 1)
	assert.Equal(t, 60.0, tel.Stages[0].MemoryUsage)
}

func TestStore_AppendAndCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.json")
	s, err := NewStore(path, 3)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(RunTelemetry{RunID: id}))
	}
	runs := s.Runs()
	require.Len(t, runs, 3)
	assert.Equal(t, "b", runs[0].RunID)

	reopened, err := NewStore(path, 3)
	require.NoError(t, err)
	assert.Equal(t, runs, reopened.Runs())
}

func TestLoadState_Missing(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, st.Runs)
}
