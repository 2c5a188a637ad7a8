package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

func newAlert(state *model.PipelineState, typ model.AlertType, sev model.Severity, entity string) model.Alert {
	key := fmt.Sprintf("%s|%s|%d", typ, entity, state.Now.UnixNano())
	return model.Alert{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
		Type:      typ,
		Severity:  sev,
		EntityID:  entity,
		CreatedAt: state.Now,
	}
}

// CoordinatorAlerts checks stock coverage against the forecasts and
// worker health. Entities are visited in inventory order.
func CoordinatorAlerts(state *model.PipelineState, health []worker.HealthReport, h model.Heuristics) []model.Alert {
	short := indexByEntity(firstPerEntity(state.Forecasts.ShortTerm))
	medium := indexByEntity(firstPerEntity(state.Forecasts.MediumTerm))
	var alerts []model.Alert

	for _, inv := range state.RawInputs.Inventory {
		qty := inv.AvailableQuantity
		if f, ok := short[inv.EntityID]; ok {
			days := qty / math.Max(f.PredictedDemand, 1)
			if days < h.StockoutHorizonDays {
				sev := model.SeverityHigh
				if days < 3 {
					sev = model.SeverityCritical
				}
				a := newAlert(state, model.AlertStockoutRisk, sev, inv.EntityID)
				a.Message = fmt.Sprintf("stockout risk on %s: %.1f days of cover", inv.EntityID, days)
				a.Details = fmt.Sprintf("available %.0f, predicted %.1f/day", qty, f.PredictedDemand)
				a.EstimatedFinancialImpact = f.PredictedDemand * 50
				a.RecommendedAction = fmt.Sprintf("order %.0f units", math.Ceil(f.PredictedDemand*14))
				alerts = append(alerts, a)
			}
		}
		if f, ok := medium[inv.EntityID]; ok {
			months := qty / math.Max(30*f.PredictedDemand, 1)
			if months > h.OverstockMonths {
				sev := model.SeverityMedium
				if months > 12 {
					sev = model.SeverityHigh
				}
				a := newAlert(state, model.AlertOverstock, sev, inv.EntityID)
				a.Message = fmt.Sprintf("overstock on %s: %.1f months of stock", inv.EntityID, months)
				a.Details = fmt.Sprintf("available %.0f, predicted %.1f/day", qty, f.PredictedDemand)
				a.EstimatedFinancialImpact = qty * 20
				a.RecommendedAction = "pause replenishment"
				alerts = append(alerts, a)
			}
		}
	}

	for _, f := range firstPerEntity(state.Forecasts.ShortTerm) {
		if f.AccuracyScore < 0.5 {
			a := newAlert(state, model.AlertForecastDeviation, model.SeverityMedium, f.EntityID)
			a.Message = fmt.Sprintf("low forecast accuracy on %s: %.2f", f.EntityID, f.AccuracyScore)
			a.Details = f.ModelUsed
			a.EstimatedFinancialImpact = 500
			a.RecommendedAction = "review forecast inputs"
			alerts = append(alerts, a)
		}
	}

	for _, r := range health {
		if r.Status == worker.StatusError {
			a := newAlert(state, model.AlertSystemHealth, model.SeverityHigh, r.WorkerID)
			a.Message = fmt.Sprintf("worker %s unhealthy: error rate %.0f%%", r.WorkerID, r.ErrorRate*100)
			a.Details = fmt.Sprintf("%d samples, mean confidence %.2f", r.Samples, r.MeanConfidence)
			a.RecommendedAction = "check worker logs"
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// SortAlerts orders by severity descending, keeping creation order within a severity.
func SortAlerts(alerts []model.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Weight() > alerts[j].Severity.Weight()
	})
}

func indexByEntity(forecasts []model.ForecastResult) map[string]model.ForecastResult {
	out := make(map[string]model.ForecastResult, len(forecasts))
	for _, f := range forecasts {
		out[f.EntityID] = f
	}
	return out
}
