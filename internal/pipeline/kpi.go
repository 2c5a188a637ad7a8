package pipeline

import (
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

const monthDays = 30

func mape(forecasts []model.ForecastResult) float64 {
	if len(forecasts) == 0 {
		return 100
	}
	sum := 0.0
	for _, f := range forecasts {
		sum += (1 - f.AccuracyScore) * 100
	}
	return sum / float64(len(forecasts))
}

// ComputeKPIs summarizes a synthesized state. Stages are the reports of
// the worker stages run so far.
func ComputeKPIs(state *model.PipelineState, stages []model.StageReport) model.KPIs {
	var k model.KPIs

	k.ForecastAccuracy.OverallMAPE = mape(state.Forecasts.All())
	k.ForecastAccuracy.ShortTermMAPE = mape(state.Forecasts.ShortTerm)
	k.ForecastAccuracy.MediumTermMAPE = mape(state.Forecasts.MediumTerm)

	stockouts, critical, highOrCritical := 0, 0, 0
	for _, a := range state.Alerts {
		if a.Type == model.AlertStockoutRisk {
			stockouts++
			if a.Severity == model.SeverityCritical {
				critical++
			}
		}
		if a.Severity.Weight() >= model.SeverityHigh.Weight() {
			highOrCritical++
		}
	}
	products := len(state.RawInputs.Inventory)
	if products == 0 {
		products = len(state.DemandPatterns)
	}
	k.ServiceMetrics.ServiceLevel = max(0, 1-float64(stockouts)/float64(max(products, 1))) * 100
	k.ServiceMetrics.StockoutFrequency = critical

	opt := make(map[string]model.OptimizationResult, len(state.Optimization))
	for _, o := range state.Optimization {
		opt[o.EntityID] = o
	}
	sales := state.RawInputs.SalesByEntity()
	var inventoryValue float64
	for _, inv := range state.RawInputs.Inventory {
		o, optimized := opt[inv.EntityID]
		minLevel := -1.0
		switch {
		case inv.ReorderPoint != nil:
			minLevel = *inv.ReorderPoint
		case optimized:
			minLevel = o.ReorderPoint
		}
		if minLevel >= 0 && inv.AvailableQuantity < minLevel {
			k.ServiceMetrics.ProductsBelowMin++
		}
		if optimized && inv.AvailableQuantity > o.ReorderPoint+o.EOQ {
			k.ServiceMetrics.ProductsAboveMax++
		}
		price := worker.UnitCost(sales[inv.EntityID], inv)
		if optimized && inv.UnitCost == nil {
			price = o.UnitCost
		}
		inventoryValue += inv.AvailableQuantity * price
	}

	from := state.Now.AddDate(0, 0, -monthDays)
	var monthly float64
	for _, r := range state.RawInputs.Sales {
		if r.Timestamp.After(from) && !r.Timestamp.After(state.Now) {
			monthly += r.Revenue
		}
	}
	k.FinancialMetrics.InventoryValue = inventoryValue
	k.FinancialMetrics.MonthlySales = monthly
	if inventoryValue > 0 {
		k.FinancialMetrics.InventoryTurnover = monthly * 12 / inventoryValue
	}
	if monthly > 0 {
		k.FinancialMetrics.DaysOfInventory = inventoryValue / (monthly / monthDays)
	}

	if len(state.Alerts) > 0 {
		k.AIPerformance.AlertPrecision = float64(highOrCritical) / float64(len(state.Alerts)) * 100
	}
	var conf float64
	for _, s := range stages {
		conf += s.Confidence
		if !s.Success {
			k.AIPerformance.StagesFailed++
		}
	}
	if len(stages) > 0 {
		k.AIPerformance.OverallConfidence = conf / float64(len(stages))
	}
	return k
}
