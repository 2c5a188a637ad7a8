package model

import "time"

// AlertType names the check that produced an alert.
type AlertType string

const (
	AlertStockoutRisk      AlertType = "STOCKOUT_RISK"
	AlertOverstock         AlertType = "OVERSTOCK"
	AlertForecastDeviation AlertType = "FORECAST_DEVIATION"
	AlertSystemHealth      AlertType = "SYSTEM_HEALTH"
)

// AnomalyAlertType is the alert type used for an anomaly-derived alert.
func AnomalyAlertType(t AnomalyType) AlertType {
	return AlertType("ANOMALY_" + string(t))
}

// Alert is an operator-facing warning.
type Alert struct {
	ID                       string     `json:"id"`
	Type                     AlertType  `json:"type"`
	Severity                 Severity   `json:"severity"`
	EntityID                 string     `json:"entity_id"`
	Message                  string     `json:"message"`
	Details                  string     `json:"details"`
	CreatedAt                time.Time  `json:"created_at"`
	EstimatedFinancialImpact float64    `json:"estimated_financial_impact"`
	RecommendedAction        string     `json:"recommended_action"`
	ResolvedAt               *time.Time `json:"resolved_at,omitempty"`
}

// RecommendationType is the kind of action suggested.
type RecommendationType string

const (
	RecommendOrder    RecommendationType = "ORDER"
	RecommendAdjust   RecommendationType = "ADJUST"
	RecommendAlert    RecommendationType = "ALERT"
	RecommendOptimize RecommendationType = "OPTIMIZE"
)

// Recommendation is a prioritized action for an entity.
type Recommendation struct {
	ID               string             `json:"id"`
	Type             RecommendationType `json:"type"`
	Priority         Priority           `json:"priority"`
	EntityID         string             `json:"entity_id"`
	Action           string             `json:"action"`
	Reasoning        string             `json:"reasoning"`
	ExpectedImpact   string             `json:"expected_impact"`
	ConfidenceScore  float64            `json:"confidence_score"`
	EstimatedBenefit *float64           `json:"estimated_benefit,omitempty"`
	EstimatedCost    *float64           `json:"estimated_cost,omitempty"`
	Deadline         time.Time          `json:"deadline"`
	Source           string             `json:"source"`
}

// Benefit returns the estimated benefit or 0.
func (r Recommendation) Benefit() float64 {
	if r.EstimatedBenefit == nil {
		return 0
	}
	return *r.EstimatedBenefit
}

// Amount is a helper for the optional money fields.
func Amount(v float64) *float64 { return &v }
