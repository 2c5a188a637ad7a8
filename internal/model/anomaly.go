package model

import "time"

// AnomalyType identifies the detector that raised an anomaly.
type AnomalyType string

const (
	AnomalyDemandSpike       AnomalyType = "DEMAND_SPIKE"
	AnomalyDemandDrop        AnomalyType = "DEMAND_DROP"
	AnomalyForecastDeviation AnomalyType = "FORECAST_DEVIATION"
	AnomalyInventoryDrift    AnomalyType = "INVENTORY_DRIFT"
	AnomalySupplierIssue     AnomalyType = "SUPPLIER_ISSUE"
	AnomalySeasonalShift     AnomalyType = "SEASONAL_SHIFT"
)

// ImpactAssessment estimates what an anomaly costs.
type ImpactAssessment struct {
	FinancialImpact   float64  `json:"financial_impact"`
	OperationalImpact string   `json:"operational_impact"`
	CustomerImpact    Severity `json:"customer_impact"`
}

// AnomalyResult is a single detection event. Never mutated once emitted.
type AnomalyResult struct {
	EntityID           string           `json:"entity_id"`
	AnomalyType        AnomalyType      `json:"anomaly_type"`
	Severity           Severity         `json:"severity"`
	DetectedAt         time.Time        `json:"detected_at"`
	CurrentValue       float64          `json:"current_value"`
	ExpectedValue      float64          `json:"expected_value"`
	DeviationScore     float64          `json:"deviation_score"`
	ConfidenceScore    float64          `json:"confidence_score"`
	ImpactAssessment   ImpactAssessment `json:"impact_assessment"`
	RootCauses         []string         `json:"root_causes"`
	RecommendedActions []string         `json:"recommended_actions"`
}
