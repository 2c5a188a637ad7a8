package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

func TestSortRecommendations(t *testing.T) {
	recs := []model.Recommendation{
		{EntityID: "a", Priority: model.PriorityLow},
		{EntityID: "b", Priority: model.PriorityCritical},
		{EntityID: "c", Priority: model.PriorityHigh},
	}
	SortRecommendations(recs)
	assert.Equal(t, []model.Priority{model.PriorityCritical, model.PriorityHigh, model.PriorityLow},
		[]model.Priority{recs[0].Priority, recs[1].Priority, recs[2].Priority})

	tied := []model.Recommendation{
		{EntityID: "z", Priority: model.PriorityHigh, EstimatedBenefit: model.Amount(100), ConfidenceScore: 0.9},
		{EntityID: "y", Priority: model.PriorityHigh, EstimatedBenefit: model.Amount(100), ConfidenceScore: 0.9},
		{EntityID: "x", Priority: model.PriorityHigh, EstimatedBenefit: model.Amount(100), ConfidenceScore: 0.95},
		{EntityID: "w", Priority: model.PriorityHigh, EstimatedBenefit: model.Amount(500), ConfidenceScore: 0.1},
	}
	SortRecommendations(tied)
	assert.Equal(t, []string{"w", "x", "y", "z"}, []string{tied[0].EntityID, tied[1].EntityID, tied[2].EntityID, tied[3].EntityID})
}

func TestRecommendations(t *testing.T) {
	state := &model.PipelineState{
		Now: refNow,
		DemandPatterns: []model.DemandPattern{
			{EntityID: "S", PatternType: model.PatternSeasonal, SeasonalityStrength: 0.8, Confidence: 0.7},
			{EntityID: "U", PatternType: model.PatternTrending, TrendDirection: model.TrendUp, TrendStrength: 0.5, Confidence: 0.8},
			{EntityID: "D", PatternType: model.PatternTrending, TrendDirection: model.TrendDown, TrendStrength: 0.5, Confidence: 0.8},
			{EntityID: "E", PatternType: model.PatternErratic, Volatility: 0.9, Confidence: 0.6},
			{EntityID: "Q", PatternType: model.PatternStable, Confidence: 0.9},
		},
		Segments: []model.ProductSegment{
			{EntityID: "S", ABC: model.ClassA, XYZ: model.ClassX, StrategicImportance: model.PriorityCritical},
			{EntityID: "E", ABC: model.ClassC, XYZ: model.ClassZ, Velocity: model.VelocitySlow, StrategicImportance: model.PriorityLow},
		},
		MarketContext: &model.MarketContext{ContextualRecommendations: []string{"prepare for a 20% demand increase: x"}},
	}

	recs := Recommendations(state)
	SortRecommendations(recs)
	require.Len(t, recs, 8)

	assert.Equal(t, model.PriorityCritical, recs[0].Priority)
	assert.Equal(t, 5000.0, recs[0].Benefit())
	assert.Equal(t, refNow.AddDate(0, 0, 14), recs[0].Deadline)

	assert.Equal(t, "U", recs[1].EntityID)
	assert.Equal(t, 1500.0, recs[1].Benefit())
	assert.Equal(t, "S", recs[2].EntityID)
	assert.Equal(t, model.RecommendOptimize, recs[2].Type)

	last := recs[len(recs)-1]
	assert.Equal(t, model.PriorityLow, last.Priority)
	assert.Equal(t, "E", last.EntityID)

	var market int
	for _, r := range recs {
		if r.EntityID == MarketEntity {
			market++
			assert.Equal(t, "prepare for a 20% demand increase: x", r.Action)
		}
	}
	assert.Equal(t, 1, market)
}

func TestRecommendations_Forecasts(t *testing.T) {
	state := &model.PipelineState{
		Now: refNow,
		Forecasts: model.ForecastSet{ShortTerm: []model.ForecastResult{
			{EntityID: "A", ForecastDate: refNow.AddDate(0, 0, 2), PredictedDemand: 10, AccuracyScore: 0.5, ConfidenceInterval95: [2]float64{0, 30}},
			{EntityID: "A", ForecastDate: refNow.AddDate(0, 0, 1), PredictedDemand: 10, AccuracyScore: 0.9, ConfidenceInterval95: [2]float64{8, 12}},
		}},
	}
	recs := Recommendations(state)
	require.Len(t, recs, 1)
	assert.Equal(t, model.RecommendOrder, recs[0].Type)
	assert.Equal(t, 0.9, recs[0].ConfidenceScore)
	assert.Equal(t, refNow, recs[0].Deadline)
}

func TestCoordinatorAlerts(t *testing.T) {
	state := &model.PipelineState{
		Now: refNow,
		RawInputs: model.Dataset{Inventory: []model.InventorySnapshot{
			{EntityID: "low", AvailableQuantity: 10},
			{EntityID: "thin", AvailableQuantity: 25},
			{EntityID: "full", AvailableQuantity: 4000},
		}},
		Forecasts: model.ForecastSet{
			ShortTerm: []model.ForecastResult{
				{EntityID: "low", ForecastDate: refNow.AddDate(0, 0, 1), PredictedDemand: 5, AccuracyScore: 0.4},
				{EntityID: "thin", ForecastDate: refNow.AddDate(0, 0, 1), PredictedDemand: 5, AccuracyScore: 0.9},
			},
			MediumTerm: []model.ForecastResult{
				{EntityID: "full", ForecastDate: refNow.AddDate(0, 0, 10), PredictedDemand: 10, AccuracyScore: 0.9},
			},
		},
	}
	health := []worker.HealthReport{{WorkerID: "enrich", Status: worker.StatusError, ErrorRate: 1}}

	alerts := CoordinatorAlerts(state, health, model.DefaultHeuristics())
	SortAlerts(alerts)
	require.Len(t, alerts, 5)

	assert.Equal(t, model.AlertStockoutRisk, alerts[0].Type)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "low", alerts[0].EntityID)
	assert.Equal(t, "order 70 units", alerts[0].RecommendedAction)
	assert.Equal(t, 250.0, alerts[0].EstimatedFinancialImpact)

	assert.Equal(t, model.SeverityHigh, alerts[1].Severity)
	assert.Equal(t, "thin", alerts[1].EntityID)
	assert.Equal(t, model.AlertOverstock, alerts[2].Type)
	assert.Equal(t, model.SeverityHigh, alerts[2].Severity)
	assert.Equal(t, 80000.0, alerts[2].EstimatedFinancialImpact)
	assert.Equal(t, model.AlertSystemHealth, alerts[3].Type)

	assert.Equal(t, model.AlertForecastDeviation, alerts[4].Type)
	assert.Equal(t, model.SeverityMedium, alerts[4].Severity)
}

func TestComputeKPIs_Empty(t *testing.T) {
	k := ComputeKPIs(&model.PipelineState{Now: refNow}, nil)
	assert.Equal(t, 100.0, k.ForecastAccuracy.OverallMAPE)
	assert.Equal(t, 100.0, k.ServiceMetrics.ServiceLevel)
	assert.Zero(t, k.FinancialMetrics.InventoryTurnover)
	assert.Zero(t, k.FinancialMetrics.DaysOfInventory)
	assert.Zero(t, k.AIPerformance.AlertPrecision)
}

func TestComputeKPIs(t *testing.T) {
	rop := 20.0
	cost := 2.0
	state := &model.PipelineState{
		Now: refNow,
		RawInputs: model.Dataset{
			Sales: []model.SalesRecord{
				{EntityID: "A", Timestamp: refNow.AddDate(0, 0, -1), Quantity: 10, Revenue: 300},
				{EntityID: "A", Timestamp: refNow.AddDate(0, 0, -40), Quantity: 10, Revenue: 999},
			},
			Inventory: []model.InventorySnapshot{
				{EntityID: "A", AvailableQuantity: 10, ReorderPoint: &rop, UnitCost: &cost},
				{EntityID: "B", AvailableQuantity: 500},
			},
		},
		Forecasts: model.ForecastSet{
			ShortTerm:  []model.ForecastResult{{AccuracyScore: 0.9}},
			MediumTerm: []model.ForecastResult{{AccuracyScore: 0.7}},
		},
		Optimization: []model.OptimizationResult{{EntityID: "B", ReorderPoint: 50, EOQ: 100, UnitCost: 1}},
		Alerts: []model.Alert{
			{Type: model.AlertStockoutRisk, Severity: model.SeverityCritical},
			{Type: model.AlertOverstock, Severity: model.SeverityMedium},
		},
	}
	stages := []model.StageReport{{Success: true, Confidence: 0.8}, {Success: false}}

	k := ComputeKPIs(state, stages)
	assert.InDelta(t, 20, k.ForecastAccuracy.OverallMAPE, 1e-9)
	assert.InDelta(t, 10, k.ForecastAccuracy.ShortTermMAPE, 1e-9)
	assert.InDelta(t, 50, k.ServiceMetrics.ServiceLevel, 1e-9)
	assert.Equal(t, 1, k.ServiceMetrics.StockoutFrequency)
	assert.Equal(t, 1, k.ServiceMetrics.ProductsBelowMin)
	assert.Equal(t, 1, k.ServiceMetrics.ProductsAboveMax)
	assert.InDelta(t, 520, k.FinancialMetrics.InventoryValue, 1e-9)
	assert.InDelta(t, 300, k.FinancialMetrics.MonthlySales, 1e-9)
	assert.InDelta(t, 300*12/520.0, k.FinancialMetrics.InventoryTurnover, 1e-9)
	assert.InDelta(t, 520/10.0, k.FinancialMetrics.DaysOfInventory, 1e-9)
	assert.InDelta(t, 50, k.AIPerformance.AlertPrecision, 1e-9)
	assert.InDelta(t, 0.4, k.AIPerformance.OverallConfidence, 1e-9)
	assert.Equal(t, 1, k.AIPerformance.StagesFailed)
}
