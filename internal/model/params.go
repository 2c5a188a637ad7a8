package model

import "fmt"

// SensitivityLevel scales the anomaly threshold.
type SensitivityLevel string

const (
	SensitivityLow    SensitivityLevel = "LOW"
	SensitivityMedium SensitivityLevel = "MEDIUM"
	SensitivityHigh   SensitivityLevel = "HIGH"
)

// ThresholdMultiplier makes HIGH sensitivity flag more and LOW flag less.
func (s SensitivityLevel) ThresholdMultiplier() float64 {
	switch s {
	case SensitivityLow:
		return 1.25
	case SensitivityHigh:
		return 0.8
	default:
		return 1.0
	}
}

// Heuristics are the tunable business thresholds used by detection and synthesis.
type Heuristics struct {
	OverstockDays            float64 `yaml:"overstock_days" json:"overstock_days"`
	SevereOverstockDays      float64 `yaml:"severe_overstock_days" json:"severe_overstock_days"`
	UnderstockDays           float64 `yaml:"understock_days" json:"understock_days"`
	SevereUnderstockDays     float64 `yaml:"severe_understock_days" json:"severe_understock_days"`
	SeasonalShiftRatio       float64 `yaml:"seasonal_shift_ratio" json:"seasonal_shift_ratio"`
	SevereSeasonalShiftRatio float64 `yaml:"severe_seasonal_shift_ratio" json:"severe_seasonal_shift_ratio"`
	SeasonalWindowDays       int     `yaml:"seasonal_window_days" json:"seasonal_window_days"`
	DemandWindowDays         int     `yaml:"demand_window_days" json:"demand_window_days"`
	DefaultUnitPrice         float64 `yaml:"default_unit_price" json:"default_unit_price"`
	ForecastDeviationFactor  float64 `yaml:"forecast_deviation_factor" json:"forecast_deviation_factor"`
	StockoutHorizonDays      float64 `yaml:"stockout_horizon_days" json:"stockout_horizon_days"`
	OverstockMonths          float64 `yaml:"overstock_months" json:"overstock_months"`
	SafetyStockMultiplier    float64 `yaml:"safety_stock_multiplier" json:"safety_stock_multiplier"`
	SeasonalPatternStrength  float64 `yaml:"seasonal_pattern_strength" json:"seasonal_pattern_strength"`
	TrendingPatternStrength  float64 `yaml:"trending_pattern_strength" json:"trending_pattern_strength"`
	ErraticPatternVolatility float64 `yaml:"erratic_pattern_volatility" json:"erratic_pattern_volatility"`
}

// DefaultHeuristics returns the stock thresholds.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		OverstockDays:            90,
		SevereOverstockDays:      180,
		UnderstockDays:           3,
		SevereUnderstockDays:     1,
		SeasonalShiftRatio:       0.3,
		SevereSeasonalShiftRatio: 0.5,
		SeasonalWindowDays:       30,
		DemandWindowDays:         7,
		DefaultUnitPrice:         25,
		ForecastDeviationFactor:  2,
		StockoutHorizonDays:      7,
		OverstockMonths:          6,
		SafetyStockMultiplier:    1,
		SeasonalPatternStrength:  0.5,
		TrendingPatternStrength:  0.3,
		ErraticPatternVolatility: 0.5,
	}
}

// StockPolicy holds the cost inputs of the stock optimization stage.
type StockPolicy struct {
	OrderingCost float64 `yaml:"ordering_cost" json:"ordering_cost"`
	HoldingRate  float64 `yaml:"holding_rate" json:"holding_rate"`
	LeadTimeDays float64 `yaml:"lead_time_days" json:"lead_time_days"`
	ServiceLevel float64 `yaml:"service_level" json:"service_level"`
}

// DefaultStockPolicy returns the usual retail cost assumptions.
func DefaultStockPolicy() StockPolicy {
	return StockPolicy{OrderingCost: 50, HoldingRate: 0.15, LeadTimeDays: 14, ServiceLevel: 0.95}
}

// RunParams is the per-run configuration handed to every stage.
type RunParams struct {
	SensitivityLevel         SensitivityLevel `json:"sensitivity_level"`
	AnomalyThreshold         float64          `json:"anomaly_threshold"`
	TrendDetectionWindowDays int              `json:"trend_detection_window_days"`
	SeasonalAdjustment       bool             `json:"seasonal_adjustment"`
	ForecastHorizonDays      int              `json:"forecast_horizon_days"`
	BaselineWindowDays       int              `json:"baseline_window_days"`
	ConcurrencyLimit         int              `json:"concurrency_limit"`
	Heuristics               Heuristics       `json:"heuristics"`
	Stock                    StockPolicy      `json:"stock"`
}

// EffectiveThreshold applies the sensitivity multiplier.
func (p RunParams) EffectiveThreshold() float64 {
	return p.AnomalyThreshold * p.SensitivityLevel.ThresholdMultiplier()
}

// DefaultRunParams returns parameters matching the config defaults.
func DefaultRunParams() RunParams {
	return RunParams{
		SensitivityLevel:         SensitivityMedium,
		AnomalyThreshold:         2.0,
		TrendDetectionWindowDays: 7,
		SeasonalAdjustment:       true,
		ForecastHorizonDays:      30,
		BaselineWindowDays:       90,
		ConcurrencyLimit:         8,
		Heuristics:               DefaultHeuristics(),
		Stock:                    DefaultStockPolicy(),
	}
}

// Validate checks the caller-supplied run configuration.
func (p RunParams) Validate() error {
	switch p.SensitivityLevel {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
	default:
		return fmt.Errorf("sensitivity_level must be LOW, MEDIUM or HIGH, got %q", p.SensitivityLevel)
	}
	if p.AnomalyThreshold <= 0 {
		return fmt.Errorf("anomaly_threshold must be positive")
	}
	if p.TrendDetectionWindowDays <= 0 {
		return fmt.Errorf("trend_detection_window_days must be positive")
	}
	if p.ForecastHorizonDays <= 0 {
		return fmt.Errorf("forecast_horizon_days must be positive")
	}
	if p.BaselineWindowDays <= 0 {
		return fmt.Errorf("baseline_window_days must be positive")
	}
	return nil
}

// DemandWindow is the trailing window scored for demand spikes and drops.
// It falls back to the trend detection window when not set.
func (p RunParams) DemandWindow() int {
	if p.Heuristics.DemandWindowDays > 0 {
		return p.Heuristics.DemandWindowDays
	}
	return p.TrendDetectionWindowDays
}
