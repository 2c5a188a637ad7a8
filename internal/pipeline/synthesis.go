package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"DemandSentinel/internal/model"
)

// MarketEntity is the entity id used for recommendations derived from
// market context rather than a single product.
const MarketEntity = "MARKET_GLOBAL"

const (
	defaultDeadline = 7 * 24 * time.Hour
	segmentDeadline = 14 * 24 * time.Hour
	alertDeadline   = 3 * 24 * time.Hour
)

func newRecommendation(now time.Time, entity, source string, typ model.RecommendationType, prio model.Priority, conf float64) model.Recommendation {
	return model.Recommendation{
		ID:              uuid.New().String(),
		Type:            typ,
		Priority:        prio,
		EntityID:        entity,
		ConfidenceScore: conf,
		Deadline:        now.Add(defaultDeadline),
		Source:          source,
	}
}

// Recommendations derives the actions for a run from patterns, segments,
// short-term forecasts and market context.
func Recommendations(state *model.PipelineState) []model.Recommendation {
	now := state.Now
	var recs []model.Recommendation

	for _, p := range state.DemandPatterns {
		switch {
		case p.PatternType == model.PatternSeasonal && p.SeasonalityStrength > 0.7:
			r := newRecommendation(now, p.EntityID, "pattern_analysis", model.RecommendOptimize, model.PriorityHigh, p.Confidence)
			r.Action = "adjust stock ahead of the seasonal peak"
			r.Reasoning = fmt.Sprintf("seasonal pattern with strength %.2f", p.SeasonalityStrength)
			r.ExpectedImpact = "fewer stockouts at peak and less overstock off-season"
			r.EstimatedBenefit = model.Amount(1000)
			recs = append(recs, r)
		case p.PatternType == model.PatternErratic && p.Volatility > 0.6:
			r := newRecommendation(now, p.EntityID, "pattern_analysis", model.RecommendAdjust, model.PriorityMedium, p.Confidence)
			r.Action = "raise safety stock for volatile demand"
			r.Reasoning = fmt.Sprintf("erratic demand with volatility %.2f", p.Volatility)
			r.ExpectedImpact = "lower stockout risk"
			r.EstimatedCost = model.Amount(500)
			recs = append(recs, r)
		case p.PatternType == model.PatternTrending && p.TrendStrength > 0.3:
			r := newRecommendation(now, p.EntityID, "pattern_analysis", model.RecommendAdjust, model.PriorityMedium, p.Confidence)
			r.Reasoning = fmt.Sprintf("%s trend with strength %.2f", p.TrendDirection, p.TrendStrength)
			if p.TrendDirection == model.TrendUp {
				r.Priority = model.PriorityHigh
				r.Action = "increase order quantities to follow the upward trend"
				r.ExpectedImpact = "capture growing demand"
				r.EstimatedBenefit = model.Amount(1500)
			} else {
				r.Action = "reduce order quantities to follow the trend"
				r.ExpectedImpact = "avoid accumulating stock"
				r.EstimatedBenefit = model.Amount(800)
			}
			recs = append(recs, r)
		}
	}

	for _, s := range state.Segments {
		if s.StrategicImportance == model.PriorityCritical {
			r := newRecommendation(now, s.EntityID, "segmentation", model.RecommendOptimize, model.PriorityCritical, 0.9)
			r.Action = "prioritize availability of strategic product"
			r.Reasoning = fmt.Sprintf("class %s%s with %.0f%% of revenue", s.ABC, s.XYZ, s.RevenueShare*100)
			r.ExpectedImpact = "protect the core revenue stream"
			r.EstimatedBenefit = model.Amount(5000)
			r.Deadline = now.Add(segmentDeadline)
			recs = append(recs, r)
		}
		if s.XYZ == model.ClassZ {
			r := newRecommendation(now, s.EntityID, "segmentation", model.RecommendAdjust, model.PriorityMedium, 0.7)
			r.Action = "review the replenishment policy of an unpredictable product"
			r.Reasoning = "class Z demand is hard to forecast"
			r.ExpectedImpact = "steadier availability"
			r.EstimatedCost = model.Amount(300)
			r.Deadline = now.Add(segmentDeadline)
			recs = append(recs, r)
		}
		if s.Velocity == model.VelocitySlow && s.ABC == model.ClassC {
			r := newRecommendation(now, s.EntityID, "segmentation", model.RecommendOptimize, model.PriorityLow, 0.8)
			r.Action = "reduce stock of slow mover"
			r.Reasoning = "slow velocity and low revenue share"
			r.ExpectedImpact = "free working capital"
			r.EstimatedBenefit = model.Amount(800)
			r.Deadline = now.Add(segmentDeadline)
			recs = append(recs, r)
		}
	}

	for _, f := range firstPerEntity(state.Forecasts.ShortTerm) {
		if f.AccuracyScore < 0.6 {
			r := newRecommendation(now, f.EntityID, "forecasting", model.RecommendAlert, model.PriorityMedium, 0.8)
			r.Action = "review forecast inputs"
			r.Reasoning = fmt.Sprintf("short-term forecast accuracy %.2f", f.AccuracyScore)
			r.ExpectedImpact = "more reliable ordering decisions"
			r.Deadline = now.Add(alertDeadline)
			recs = append(recs, r)
		}
		if f.PredictedDemand > 0.8*f.ConfidenceInterval95[1] {
			r := newRecommendation(now, f.EntityID, "forecasting", model.RecommendOrder, model.PriorityHigh, f.AccuracyScore)
			r.Action = fmt.Sprintf("order ahead of predicted demand of %.1f units/day", f.PredictedDemand)
			r.Reasoning = "tight forecast close to its upper bound"
			r.ExpectedImpact = "avoid a stockout"
			r.EstimatedBenefit = model.Amount(2000)
			r.Deadline = f.ForecastDate.Add(-defaultDeadline)
			if r.Deadline.Before(now) {
				r.Deadline = now
			}
			recs = append(recs, r)
		}
	}

	if state.MarketContext != nil {
		for _, text := range state.MarketContext.ContextualRecommendations {
			r := newRecommendation(now, MarketEntity, "market_context", model.RecommendOptimize, model.PriorityMedium, 0.8)
			r.Action = text
			r.Reasoning = state.MarketContext.Summary
			r.ExpectedImpact = "align stock with market conditions"
			recs = append(recs, r)
		}
	}
	return recs
}

// SortRecommendations orders by priority, benefit and confidence
// descending, then entity ascending.
func SortRecommendations(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		if a.Benefit() != b.Benefit() {
			return a.Benefit() > b.Benefit()
		}
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		return a.EntityID < b.EntityID
	})
}

// firstPerEntity keeps the earliest forecast of each entity, in input order.
func firstPerEntity(forecasts []model.ForecastResult) []model.ForecastResult {
	seen := make(map[string]int)
	var out []model.ForecastResult
	for _, f := range forecasts {
		if i, ok := seen[f.EntityID]; ok {
			if f.ForecastDate.Before(out[i].ForecastDate) {
				out[i] = f
			}
			continue
		}
		seen[f.EntityID] = len(out)
		out = append(out, f)
	}
	return out
}
