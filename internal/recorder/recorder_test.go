package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

var started = time.Date(2024, time.June, 30, 12, 0, 0, 123456789, time.UTC)

func sampleRun(id string, at time.Time) *model.RunResult {
	benefit := 1500.0
	r := &model.RunResult{
		RunID:      id,
		Status:     model.RunDone,
		StartedAt:  at,
		FinishedAt: at.Add(1500 * time.Millisecond),
		Params:     model.DefaultRunParams(),
		DemandPatterns: []model.DemandPattern{
			{EntityID: "SKU-1", PatternType: model.PatternTrending, Confidence: 0.82, TrendDirection: model.TrendUp, TrendStrength: 0.4},
		},
		Segments: []model.ProductSegment{{EntityID: "SKU-1", ABC: model.ClassA, XYZ: model.ClassY, Velocity: model.VelocityFast, StrategicImportance: model.PriorityHigh, RevenueShare: 1}},
		Forecasts: model.ForecastSet{ShortTerm: []model.ForecastResult{
			{EntityID: "SKU-1", ForecastDate: at.AddDate(0, 0, 1), PredictedDemand: 12.5, AccuracyScore: 0.8, ConfidenceInterval95: [2]float64{10, 15}, ModelUsed: "ensemble_linear_trend"},
		}},
		Optimization: []model.OptimizationResult{{EntityID: "SKU-1", AnnualDemand: 4562.5, EOQ: 123.4, SafetyStock: 20, ReorderPoint: 195, OrderFrequencyDays: 9.87, UnitCost: 4}},
		Anomalies: []model.AnomalyResult{{
			EntityID: "SKU-1", AnomalyType: model.AnomalyDemandSpike, Severity: model.SeverityCritical, DetectedAt: at,
			CurrentValue: 260, ExpectedValue: 70, DeviationScore: 9.5, ConfidenceScore: 0.95,
			ImpactAssessment:   model.ImpactAssessment{FinancialImpact: 4750, OperationalImpact: "stock pressure", CustomerImpact: model.SeverityHigh},
			RootCauses:         []string{"promotion"},
			RecommendedActions: []string{"check stock levels"},
		}},
		Alerts: []model.Alert{{ID: "a-1", Type: model.AlertStockoutRisk, Severity: model.SeverityCritical, EntityID: "SKU-1", Message: "m", CreatedAt: at, EstimatedFinancialImpact: 625}},
		Recommendations: []model.Recommendation{{
			ID: "r-1", Type: model.RecommendAdjust, Priority: model.PriorityHigh, EntityID: "SKU-1", Action: "increase orders",
			ConfidenceScore: 0.82, EstimatedBenefit: &benefit, Deadline: at.AddDate(0, 0, 7), Source: "pattern_analysis",
		}},
		MarketContext: &model.MarketContext{GlobalMarketFactor: 1.02, Confidence: 0.7, Summary: "1 market insights",
			Insights: []model.MarketInsight{{Title: "t", ImpactScore: 0.5, ConfidenceScore: 0.9, Direction: "INCREASE", DurationDays: 30}}},
		ExecutionSummary: "run ok",
		Stages: []model.StageReport{
			{Stage: model.StagePatternAnalysis, WorkerID: "pattern", Success: true, Confidence: 0.82, Duration: 1234567 * time.Nanosecond,
				Metrics: model.StageMetrics{Accuracy: 0.82, Throughput: 100, ResourceUsage: 12.5, MemoryUsage: 40}},
			{Stage: model.StageContextEnrichment, WorkerID: "enrich", Skipped: true, Error: "dependency unmet: enrichment endpoint configured"},
		},
	}
	r.KPIs.AIPerformance.OverallConfidence = 0.41
	r.KPIs.ForecastAccuracy.OverallMAPE = 20
	return r
}

func TestCodec_RoundTrip(t *testing.T) {
	in := sampleRun("run-1", started)
	rec, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, rec.SchemaVersion)
	assert.Equal(t, "2024-06-30T12:00:00.123456789Z", rec.StartedAt)
	assert.Contains(t, rec.Fields[fieldStages], `"duration":1234567`)

	out, err := Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodec_FailedRun(t *testing.T) {
	in := &model.RunResult{RunID: "run-2", Status: model.RunFailed, FailedStage: model.StageForecasting, Error: "run cancelled", StartedAt: started, FinishedAt: started}
	rec, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	rec, err := Encode(sampleRun("run-1", started))
	require.NoError(t, err)
	rec.SchemaVersion = 2
	_, err = Decode(rec)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestDecode_RejectsBadTimestamp(t *testing.T) {
	rec, err := Encode(sampleRun("run-1", started))
	require.NoError(t, err)
	rec.StartedAt = "yesterday"
	_, err = Decode(rec)
	assert.Error(t, err)
}

func TestSQLiteRecorder(t *testing.T) {
	ctx := context.Background()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"), logger.NewNop())
	require.NoError(t, err)
	defer r.Close()

	first := sampleRun("run-1", started)
	second := sampleRun("run-2", started.Add(time.Hour))
	require.NoError(t, r.SaveRun(ctx, first))
	require.NoError(t, r.SaveRun(ctx, second))
	require.NoError(t, r.SaveRun(ctx, second))

	loaded, err := r.LoadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, first, loaded)

	runs, err := r.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Anomalies)
	assert.Equal(t, 0.41, runs[0].OverallConfidence)
	assert.True(t, runs[1].StartedAt.Equal(started))

	critical, err := r.CountAlerts(ctx, model.SeverityCritical)
	require.NoError(t, err)
	assert.Equal(t, 2, critical)

	_, err = r.LoadRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	require.NoError(t, r.SaveRun(context.Background(), sampleRun("x", started)))
	_, err := r.LoadRun(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err := r.ListRuns(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}
