package model

import "time"

// ForecastResult is one predicted day for one entity.
type ForecastResult struct {
	EntityID             string     `json:"entity_id"`
	ForecastDate         time.Time  `json:"forecast_date"`
	PredictedDemand      float64    `json:"predicted_demand"`
	AccuracyScore        float64    `json:"accuracy_score"`
	ConfidenceInterval95 [2]float64 `json:"confidence_interval_95"`
	ModelUsed            string     `json:"model_used"`
}

// ForecastSet buckets forecasts by distance from the run clock.
type ForecastSet struct {
	ShortTerm  []ForecastResult `json:"short_term"`
	MediumTerm []ForecastResult `json:"medium_term"`
	LongTerm   []ForecastResult `json:"long_term"`
}

// All returns short, medium and long forecasts in that order.
func (f ForecastSet) All() []ForecastResult {
	out := make([]ForecastResult, 0, len(f.ShortTerm)+len(f.MediumTerm)+len(f.LongTerm))
	out = append(out, f.ShortTerm...)
	out = append(out, f.MediumTerm...)
	return append(out, f.LongTerm...)
}

// Len is the total number of forecasts.
func (f ForecastSet) Len() int {
	return len(f.ShortTerm) + len(f.MediumTerm) + len(f.LongTerm)
}

// OptimizationResult holds computed stock parameters for one entity.
type OptimizationResult struct {
	EntityID           string  `json:"entity_id"`
	AnnualDemand       float64 `json:"annual_demand"`
	EOQ                float64 `json:"eoq"`
	SafetyStock        float64 `json:"safety_stock"`
	ReorderPoint       float64 `json:"reorder_point"`
	OrderFrequencyDays float64 `json:"order_frequency_days"`
	UnitCost           float64 `json:"unit_cost"`
}
