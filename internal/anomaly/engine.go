// Package anomaly detects unusual demand, forecast, inventory and supply
// behaviour against per-entity statistical baselines.
package anomaly

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/fanout"
	"DemandSentinel/internal/model"
)

// Input is everything one detection pass looks at.
type Input struct {
	Now       time.Time
	Params    model.RunParams
	Dataset   model.Dataset
	Patterns  []model.DemandPattern
	Forecasts []model.ForecastResult
}

// Report is the outcome of a detection pass.
type Report struct {
	Anomalies  []model.AnomalyResult
	Alerts     []model.Alert
	Confidence float64
	Entities   int
	// Rejected lists supplier alerts dropped by validation.
	Rejected []error
}

// Engine runs all detectors and keeps a bounded history of what it found.
type Engine struct {
	history *History
}

// NewEngine creates an engine recording into history. A nil history disables recording.
func NewEngine(history *History) *Engine {
	return &Engine{history: history}
}

// History returns the engine's anomaly history, possibly nil.
func (e *Engine) History() *History { return e.history }

// Detect evaluates every entity with sales history, then the supplier feed.
// The result depends only on in, so repeated calls with the same input
// return the same anomalies in the same order.
func (e *Engine) Detect(ctx context.Context, in Input) (Report, error) {
	byEntity := in.Dataset.SalesByEntity()
	patterns := make(map[string]*model.DemandPattern, len(in.Patterns))
	for i := range in.Patterns {
		patterns[in.Patterns[i].EntityID] = &in.Patterns[i]
	}
	forecasts := make(map[string][]model.ForecastResult)
	for _, f := range in.Forecasts {
		forecasts[f.EntityID] = append(forecasts[f.EntityID], f)
	}

	keys := fanout.SortedKeys(byEntity)
	found, err := fanout.Map(ctx, in.Params.ConcurrencyLimit, keys, func(ctx context.Context, id string) ([]model.AnomalyResult, error) {
		view := buildView(id, byEntity[id], in, patterns[id], forecasts[id])
		return detectEntity(view, in), nil
	}, nil)
	if err != nil {
		return Report{}, fmt.Errorf("detect anomalies: %w", err)
	}

	report := Report{Entities: len(keys)}
	for _, a := range in.Dataset.SupplierAlerts {
		if err := ValidateSupplierAlert(a); err != nil {
			report.Rejected = append(report.Rejected, fmt.Errorf("supplier alert for %q: %w", a.EntityID, err))
			continue
		}
		found = append(found, supplierAnomaly(a, in))
	}

	SortAnomalies(found)
	report.Anomalies = found
	report.Alerts = ToAlerts(found)
	report.Confidence = detectionConfidence(found)

	if e.history != nil {
		e.history.Add(found...)
	}
	return report, nil
}

func buildView(id string, records []model.SalesRecord, in Input, pattern *model.DemandPattern, forecasts []model.ForecastResult) entityView {
	p := in.Params
	// The reference baseline stops before any trailing window scored against it.
	window := max(p.TrendDetectionWindowDays, p.DemandWindow())
	refEnd := in.Now.AddDate(0, 0, -window)

	span := p.BaselineWindowDays
	if p.Heuristics.SeasonalWindowDays > span {
		span = p.Heuristics.SeasonalWindowDays
	}
	if window > span {
		span = window
	}

	v := entityView{
		id:        id,
		reference: calculator.ComputeBaseline(id, records, calculator.BaselineOptions{End: refEnd, WindowDays: p.BaselineWindowDays, Seasonal: p.SeasonalAdjustment}),
		current:   calculator.ComputeBaseline(id, records, calculator.BaselineOptions{End: in.Now, WindowDays: p.BaselineWindowDays}),
		recent:    calculator.DailyTotals(records, in.Now, span),
		pattern:   pattern,
		forecasts: forecasts,
		unitPrice: p.Heuristics.DefaultUnitPrice,
	}
	if inv, ok := in.Dataset.InventoryFor(id); ok {
		v.inventory = &inv
	}
	return v
}

func detectEntity(v entityView, in Input) []model.AnomalyResult {
	var out []model.AnomalyResult
	if a, ok := detectDemandShift(v, in); ok {
		out = append(out, a)
	}
	out = append(out, detectForecastDeviation(v, in)...)
	if a, ok := detectInventoryDrift(v, in); ok {
		out = append(out, a)
	}
	if a, ok := detectSeasonalShift(v, in); ok {
		out = append(out, a)
	}
	return out
}

// SortAnomalies orders by severity desc, deviation desc, entity asc, type asc.
func SortAnomalies(items []model.AnomalyResult) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if wa, wb := a.Severity.Weight(), b.Severity.Weight(); wa != wb {
			return wa > wb
		}
		if a.DeviationScore != b.DeviationScore {
			return a.DeviationScore > b.DeviationScore
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.AnomalyType < b.AnomalyType
	})
}

// ToAlerts turns HIGH and CRITICAL anomalies into alerts, one each. Alert
// ids are derived from the anomaly so the same detection maps to the same id.
func ToAlerts(items []model.AnomalyResult) []model.Alert {
	var alerts []model.Alert
	for i, a := range items {
		if a.Severity != model.SeverityHigh && a.Severity != model.SeverityCritical {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s|%d", a.EntityID, a.AnomalyType, a.DetectedAt.UTC().Format(time.RFC3339Nano), i)
		action := ""
		if len(a.RecommendedActions) > 0 {
			action = a.RecommendedActions[0]
		}
		alerts = append(alerts, model.Alert{
			ID:                       uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
			Type:                     model.AnomalyAlertType(a.AnomalyType),
			Severity:                 a.Severity,
			EntityID:                 a.EntityID,
			Message:                  fmt.Sprintf("%s on %s: observed %.1f, expected %.1f", a.AnomalyType, a.EntityID, a.CurrentValue, a.ExpectedValue),
			Details:                  strings.Join(a.RootCauses, ", "),
			CreatedAt:                a.DetectedAt,
			EstimatedFinancialImpact: a.ImpactAssessment.FinancialImpact,
			RecommendedAction:        action,
		})
	}
	return alerts
}

func detectionConfidence(items []model.AnomalyResult) float64 {
	if len(items) == 0 {
		return 0.8
	}
	sum := 0.0
	for _, a := range items {
		sum += a.ConfidenceScore
	}
	return min(0.95, sum/float64(len(items)))
}
