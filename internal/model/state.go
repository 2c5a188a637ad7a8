package model

import "time"

// MarketInsight is one validated insight from the enrichment service.
type MarketInsight struct {
	Title                  string  `json:"title"`
	Description            string  `json:"description"`
	Query                  string  `json:"query"`
	ImpactScore            float64 `json:"impact_score"`
	ConfidenceScore        float64 `json:"confidence_score"`
	TimeRelevance          string  `json:"time_relevance"`
	DemandChangePercentage float64 `json:"demand_change_percentage"`
	Direction              string  `json:"direction"`
	DurationDays           int     `json:"duration_days"`
}

// MarketContext is the folded output of the enrichment stage.
type MarketContext struct {
	Insights                  []MarketInsight `json:"insights"`
	GlobalMarketFactor        float64         `json:"global_market_factor"`
	Confidence                float64         `json:"confidence"`
	ContextualRecommendations []string        `json:"contextual_recommendations"`
	Summary                   string          `json:"summary"`
	Cached                    bool            `json:"cached"`
}

// KPIs are the run-level indicators.
type KPIs struct {
	ForecastAccuracy struct {
		OverallMAPE    float64 `json:"overall_mape"`
		ShortTermMAPE  float64 `json:"short_term_mape"`
		MediumTermMAPE float64 `json:"medium_term_mape"`
	} `json:"forecast_accuracy"`
	ServiceMetrics struct {
		ServiceLevel      float64 `json:"service_level"`
		StockoutFrequency int     `json:"stockout_frequency"`
		ProductsBelowMin  int     `json:"products_below_min"`
		ProductsAboveMax  int     `json:"products_above_max"`
	} `json:"service_metrics"`
	FinancialMetrics struct {
		InventoryValue    float64 `json:"inventory_value"`
		MonthlySales      float64 `json:"monthly_sales"`
		InventoryTurnover float64 `json:"inventory_turnover"`
		DaysOfInventory   float64 `json:"days_of_inventory"`
	} `json:"financial_metrics"`
	AIPerformance struct {
		AlertPrecision    float64 `json:"alert_precision"`
		OverallConfidence float64 `json:"overall_confidence"`
		StagesFailed      int     `json:"stages_failed"`
	} `json:"ai_performance"`
}

// PipelineState is the aggregate threaded through a run by the coordinator.
type PipelineState struct {
	RawInputs       Dataset              `json:"-"`
	Now             time.Time            `json:"-"`
	DemandPatterns  []DemandPattern      `json:"demand_patterns"`
	Segments        []ProductSegment     `json:"segments"`
	Forecasts       ForecastSet          `json:"forecasts"`
	Optimization    []OptimizationResult `json:"optimization_results"`
	Anomalies       []AnomalyResult      `json:"anomalies"`
	Alerts          []Alert              `json:"alerts"`
	Recommendations []Recommendation     `json:"recommendations"`
	MarketContext   *MarketContext       `json:"market_context,omitempty"`
	KPIs            KPIs                 `json:"kpis"`
}

// StateUpdate is a partial result returned by a worker. Nil fields are left untouched.
type StateUpdate struct {
	DemandPatterns  []DemandPattern
	Segments        []ProductSegment
	Forecasts       *ForecastSet
	Optimization    []OptimizationResult
	Anomalies       []AnomalyResult
	Alerts          []Alert
	Recommendations []Recommendation
	MarketContext   *MarketContext
}

// Snapshot returns a copy safe to hand to a worker.
func (s *PipelineState) Snapshot() PipelineState {
	c := *s
	c.RawInputs = Dataset{
		Sales:          append([]SalesRecord(nil), s.RawInputs.Sales...),
		Inventory:      append([]InventorySnapshot(nil), s.RawInputs.Inventory...),
		SupplierAlerts: append([]SupplierAlert(nil), s.RawInputs.SupplierAlerts...),
		PriorForecasts: append([]ForecastResult(nil), s.RawInputs.PriorForecasts...),
	}
	c.DemandPatterns = append([]DemandPattern(nil), s.DemandPatterns...)
	c.Segments = append([]ProductSegment(nil), s.Segments...)
	c.Forecasts = ForecastSet{
		ShortTerm:  append([]ForecastResult(nil), s.Forecasts.ShortTerm...),
		MediumTerm: append([]ForecastResult(nil), s.Forecasts.MediumTerm...),
		LongTerm:   append([]ForecastResult(nil), s.Forecasts.LongTerm...),
	}
	c.Optimization = append([]OptimizationResult(nil), s.Optimization...)
	c.Anomalies = append([]AnomalyResult(nil), s.Anomalies...)
	c.Alerts = append([]Alert(nil), s.Alerts...)
	c.Recommendations = append([]Recommendation(nil), s.Recommendations...)
	if s.MarketContext != nil {
		mc := *s.MarketContext
		mc.Insights = append([]MarketInsight(nil), s.MarketContext.Insights...)
		mc.ContextualRecommendations = append([]string(nil), s.MarketContext.ContextualRecommendations...)
		c.MarketContext = &mc
	}
	return c
}

// Apply merges a worker update. Patterns, segments, forecasts, optimization
// and market context replace; anomalies, alerts and recommendations append.
func (s *PipelineState) Apply(u StateUpdate) {
	if u.DemandPatterns != nil {
		s.DemandPatterns = u.DemandPatterns
	}
	if u.Segments != nil {
		s.Segments = u.Segments
	}
	if u.Forecasts != nil {
		s.Forecasts = *u.Forecasts
	}
	if u.Optimization != nil {
		s.Optimization = u.Optimization
	}
	if u.MarketContext != nil {
		s.MarketContext = u.MarketContext
	}
	s.Anomalies = append(s.Anomalies, u.Anomalies...)
	s.Alerts = append(s.Alerts, u.Alerts...)
	s.Recommendations = append(s.Recommendations, u.Recommendations...)
}

// PatternFor returns the demand pattern of an entity.
func (s *PipelineState) PatternFor(entityID string) (DemandPattern, bool) {
	for _, p := range s.DemandPatterns {
		if p.EntityID == entityID {
			return p, true
		}
	}
	return DemandPattern{}, false
}
