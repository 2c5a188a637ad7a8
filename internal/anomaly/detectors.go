package anomaly

import (
	"math"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/model"
)

var (
	spikeCauses = []string{"promotion", "external event", "viral effect", "competitor stockout"}
	dropCauses  = []string{"competitor promotion", "quality issue", "seasonality", "price change"}
)

const eps = 1e-9

func abs(v float64) float64 { return math.Abs(v) }

func customerImpact(s model.Severity) model.Severity {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return model.SeverityHigh
	case model.SeverityMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// entityView is everything the detectors know about one entity.
type entityView struct {
	id        string
	reference model.StatisticalBaseline
	current   model.StatisticalBaseline
	recent    calculator.DailySeries
	pattern   *model.DemandPattern
	inventory *model.InventorySnapshot
	forecasts []model.ForecastResult
	unitPrice float64
}

// detectDemandShift compares the trailing window with what the reference
// baseline expected for it.
func detectDemandShift(v entityView, in Input) (model.AnomalyResult, bool) {
	b := v.reference
	if b.Days == 0 {
		return model.AnomalyResult{}, false
	}
	window := in.Params.DemandWindow()
	threshold := in.Params.EffectiveThreshold()
	if window <= 0 || threshold <= 0 {
		return model.AnomalyResult{}, false
	}

	actual := calculator.Sum(v.recent.Tail(window))
	expected := b.Mean * float64(window) * b.SeasonalMultiplier(in.Now.Month())
	diff := abs(actual - expected)
	if diff < eps {
		return model.AnomalyResult{}, false
	}
	std := b.StdDev
	if std <= 0 {
		std = max(b.Mean*0.1, 1)
	}
	deviation := diff / (std * math.Sqrt(float64(window)))
	if deviation <= threshold {
		return model.AnomalyResult{}, false
	}

	ratio := deviation / threshold
	severity := SeverityForRatio(ratio)
	res := model.AnomalyResult{
		EntityID:        v.id,
		Severity:        severity,
		DetectedAt:      in.Now,
		CurrentValue:    actual,
		ExpectedValue:   expected,
		DeviationScore:  deviation,
		ConfidenceScore: math.Min(0.95, ratio),
	}
	impact := model.ImpactAssessment{FinancialImpact: diff * v.unitPrice}

	if actual > expected {
		res.AnomalyType = model.AnomalyDemandSpike
		res.RootCauses = append([]string(nil), spikeCauses...)
		res.RecommendedActions = []string{"check stock levels", "consider urgent order"}
		if deviation > 3 {
			res.RecommendedActions = append(res.RecommendedActions, "expedite supplier deliveries", "alert sales team")
		}
		impact.OperationalImpact = "stockout risk"
		impact.CustomerImpact = customerImpact(severity)
	} else {
		res.AnomalyType = model.AnomalyDemandDrop
		res.RootCauses = append([]string(nil), dropCauses...)
		res.RecommendedActions = []string{"analyze causes of the drop", "review pricing"}
		if deviation > 2 {
			res.RecommendedActions = append(res.RecommendedActions, "suspend pending orders")
		}
		impact.OperationalImpact = "excess inventory risk"
		impact.CustomerImpact = model.SeverityLow
	}
	res.ImpactAssessment = impact
	return res, true
}

// detectForecastDeviation scores past forecasts against same-day actuals.
// Only completed days count; days with no recorded demand are skipped.
func detectForecastDeviation(v entityView, in Input) []model.AnomalyResult {
	factor := in.Params.Heuristics.ForecastDeviationFactor
	today := calculator.Day(in.Now)
	var out []model.AnomalyResult
	for _, f := range v.forecasts {
		if !calculator.Day(f.ForecastDate).Before(today) {
			continue
		}
		actual, ok := v.recent.At(f.ForecastDate)
		if !ok || actual == 0 {
			continue
		}
		relErr := abs(actual-f.PredictedDemand) / max(f.PredictedDemand, 1)
		if relErr <= factor*(1-f.AccuracyScore) {
			continue
		}
		severity := SeverityForError(relErr)
		out = append(out, model.AnomalyResult{
			EntityID:        v.id,
			AnomalyType:     model.AnomalyForecastDeviation,
			Severity:        severity,
			DetectedAt:      in.Now,
			CurrentValue:    actual,
			ExpectedValue:   f.PredictedDemand,
			DeviationScore:  relErr / max(1-f.AccuracyScore, 0.01),
			ConfidenceScore: calculator.Clamp(1-relErr, 0, 0.9),
			ImpactAssessment: model.ImpactAssessment{
				FinancialImpact:   relErr * 1000,
				OperationalImpact: "planning accuracy degraded",
				CustomerImpact:    customerImpact(severity),
			},
			RootCauses:         []string{"model drift", "unmodelled demand driver"},
			RecommendedActions: []string{"review forecast model", "recalibrate with recent data"},
		})
	}
	return out
}

// detectInventoryDrift flags stock that covers too many or too few days of demand.
func detectInventoryDrift(v entityView, in Input) (model.AnomalyResult, bool) {
	if v.inventory == nil || v.current.Days == 0 {
		return model.AnomalyResult{}, false
	}
	h := in.Params.Heuristics
	mean := v.current.Mean
	qty := v.inventory.AvailableQuantity
	coverage := qty / max(mean, 0.1)

	res := model.AnomalyResult{
		EntityID:     v.id,
		AnomalyType:  model.AnomalyInventoryDrift,
		DetectedAt:   in.Now,
		CurrentValue: qty,
	}
	switch {
	case coverage > h.OverstockDays:
		res.Severity = model.SeverityMedium
		if coverage > h.SevereOverstockDays {
			res.Severity = model.SeverityHigh
		}
		res.ExpectedValue = mean * 30
		res.DeviationScore = coverage / 30
		res.ConfidenceScore = 0.8
		res.ImpactAssessment = model.ImpactAssessment{
			FinancialImpact:   coverage * 10,
			OperationalImpact: "capital tied up in stock",
			CustomerImpact:    model.SeverityLow,
		}
		res.RootCauses = []string{"over-ordering", "demand below plan"}
		res.RecommendedActions = []string{"pause replenishment", "consider promotion to clear stock"}
	case coverage < h.UnderstockDays:
		res.Severity = model.SeverityHigh
		if coverage < h.SevereUnderstockDays {
			res.Severity = model.SeverityCritical
		}
		res.ExpectedValue = mean * 14
		res.DeviationScore = (14 - coverage) / 14
		res.ConfidenceScore = 0.9
		res.ImpactAssessment = model.ImpactAssessment{
			FinancialImpact:   (14 - coverage) * 100,
			OperationalImpact: "imminent stockout",
			CustomerImpact:    customerImpact(res.Severity),
		}
		res.RootCauses = []string{"replenishment delay", "demand above plan"}
		res.RecommendedActions = []string{"place urgent order", "check supplier lead time"}
	default:
		return model.AnomalyResult{}, false
	}
	return res, true
}

// detectSeasonalShift checks whether a seasonal entity still follows its
// monthly profile.
func detectSeasonalShift(v entityView, in Input) (model.AnomalyResult, bool) {
	if !in.Params.SeasonalAdjustment || v.pattern == nil || v.pattern.PatternType != model.PatternSeasonal || v.reference.Days == 0 {
		return model.AnomalyResult{}, false
	}
	h := in.Params.Heuristics
	if h.SeasonalShiftRatio <= 0 {
		return model.AnomalyResult{}, false
	}
	avg := calculator.Mean(v.recent.Tail(h.SeasonalWindowDays))
	expected := v.reference.Mean * v.reference.SeasonalMultiplier(in.Now.Month())
	d := abs(avg-expected) / max(expected, eps)
	if d <= h.SeasonalShiftRatio {
		return model.AnomalyResult{}, false
	}
	severity := model.SeverityMedium
	if d > h.SevereSeasonalShiftRatio {
		severity = model.SeverityHigh
	}
	return model.AnomalyResult{
		EntityID:        v.id,
		AnomalyType:     model.AnomalySeasonalShift,
		Severity:        severity,
		DetectedAt:      in.Now,
		CurrentValue:    avg,
		ExpectedValue:   expected,
		DeviationScore:  d / h.SeasonalShiftRatio,
		ConfidenceScore: calculator.Clamp(v.pattern.Confidence, 0, 1),
		ImpactAssessment: model.ImpactAssessment{
			FinancialImpact:   d * 500,
			OperationalImpact: "seasonal plan out of date",
			CustomerImpact:    customerImpact(severity),
		},
		RootCauses:         []string{"seasonal profile changed", "calendar shift"},
		RecommendedActions: []string{"refresh seasonal profile", "adjust seasonal stock build"},
	}, true
}
