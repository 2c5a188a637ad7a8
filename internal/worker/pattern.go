package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/fanout"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// Worker ids, also used as config keys.
const (
	PatternID  = "pattern"
	ForecastID = "forecast"
	OptimizeID = "optimize"
	AnomalyID  = "anomaly"
	EnrichID   = "enrich"
)

// PatternWorker classifies each entity's demand and segments the catalogue.
type PatternWorker struct {
	log logger.Logger
}

func NewPatternWorker(log logger.Logger) *PatternWorker {
	return &PatternWorker{log: log}
}

func (w *PatternWorker) ID() string                 { return PatternID }
func (w *PatternWorker) Stage() model.Stage         { return model.StagePatternAnalysis }
func (w *PatternWorker) Dependencies() []Dependency { return []Dependency{salesHistory} }

type entityProfile struct {
	pattern  model.DemandPattern
	baseline model.StatisticalBaseline
	cv       float64
	revenue  float64
}

func (w *PatternWorker) Run(ctx context.Context, in Input, snap model.PipelineState) Result {
	start := time.Now()
	byEntity := snap.RawInputs.SalesByEntity()
	keys := fanout.SortedKeys(byEntity)

	var meter poolMeter
	profiles, err := fanout.Map(ctx, in.Params.ConcurrencyLimit, keys, func(ctx context.Context, id string) ([]entityProfile, error) {
		var p entityProfile
		meter.track(func() { p = profileEntity(id, byEntity[id], in) })
		return []entityProfile{p}, nil
	}, func(a, b entityProfile) bool { return a.pattern.EntityID < b.pattern.EntityID })
	if err != nil {
		return failed(w.ID(), start, fmt.Errorf("pattern analysis: %w", err))
	}

	patterns := make([]model.DemandPattern, 0, len(profiles))
	sum := 0.0
	for _, p := range profiles {
		patterns = append(patterns, p.pattern)
		sum += p.pattern.Confidence
	}
	segments := segment(profiles)
	confidence := 0.0
	if len(patterns) > 0 {
		confidence = sum / float64(len(patterns))
	}

	elapsed := time.Since(start)
	w.log.Debugf(ctx, "classified %d entities", len(patterns))
	return Result{
		WorkerID:      w.ID(),
		ExecutionTime: elapsed,
		Success:       true,
		Confidence:    confidence,
		Output:        model.StateUpdate{DemandPatterns: patterns, Segments: segments},
		Metrics: model.StageMetrics{
			Accuracy:      confidence,
			Throughput:    throughput(len(patterns), elapsed),
			ResourceUsage: meter.utilization(elapsed, in.Params.ConcurrencyLimit),
		},
	}
}

func profileEntity(id string, records []model.SalesRecord, in Input) entityProfile {
	p := in.Params
	b := calculator.ComputeBaseline(id, records, calculator.BaselineOptions{
		End:        in.Now,
		WindowDays: p.BaselineWindowDays,
		Seasonal:   p.SeasonalAdjustment,
	})
	span := calculator.ActiveSpan(records, in.Now, p.BaselineWindowDays)
	series := calculator.DailyTotals(records, in.Now, span)

	windowStart := calculator.Day(in.Now).AddDate(0, 0, -(p.BaselineWindowDays - 1))
	revenue := 0.0
	for _, r := range records {
		if !r.Timestamp.Before(windowStart) && !calculator.Day(r.Timestamp).After(calculator.Day(in.Now)) {
			revenue += r.Revenue
		}
	}

	return entityProfile{
		pattern:  Classify(b, series.Values, p.Heuristics),
		baseline: b,
		cv:       calculator.CoefficientOfVariation(series.Values),
		revenue:  revenue,
	}
}

// Classify derives the demand pattern of one entity. The first rule that
// matches wins: seasonal, then trending, then erratic, else stable.
func Classify(b model.StatisticalBaseline, values []float64, h model.Heuristics) model.DemandPattern {
	volatility := 0.0
	if b.Mean > 0 {
		volatility = calculator.Clamp(b.StdDev/b.Mean, 0, 1)
	}
	seasonality := calculator.SeasonalityStrength(b.SeasonalAdjustment)
	trend := calculator.TrendStrength(values)

	direction := model.TrendFlat
	if trend >= 0.1 {
		if b.TrendCoefficient > 0 {
			direction = model.TrendUp
		} else if b.TrendCoefficient < 0 {
			direction = model.TrendDown
		}
	}

	p := model.DemandPattern{
		EntityID:            b.EntityID,
		Volatility:          volatility,
		SeasonalityStrength: seasonality,
		TrendDirection:      direction,
		TrendStrength:       trend,
	}
	switch {
	case seasonality >= h.SeasonalPatternStrength:
		p.PatternType, p.Confidence = model.PatternSeasonal, seasonality
	case trend >= h.TrendingPatternStrength:
		p.PatternType, p.Confidence = model.PatternTrending, trend
	case volatility >= h.ErraticPatternVolatility:
		p.PatternType, p.Confidence = model.PatternErratic, volatility
	default:
		p.PatternType, p.Confidence = model.PatternStable, 1-volatility
	}
	p.Confidence = calculator.Clamp(p.Confidence, 0, 1)
	return p
}

func segment(profiles []entityProfile) []model.ProductSegment {
	ranked := make([]entityProfile, len(profiles))
	copy(ranked, profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].revenue != ranked[j].revenue {
			return ranked[i].revenue > ranked[j].revenue
		}
		return ranked[i].pattern.EntityID < ranked[j].pattern.EntityID
	})

	total := 0.0
	for _, p := range ranked {
		total += p.revenue
	}

	out := make([]model.ProductSegment, 0, len(ranked))
	cumulative := 0.0
	for _, p := range ranked {
		share := 0.0
		if total > 0 {
			share = p.revenue / total
		}
		abc := model.ClassC
		switch {
		case total <= 0:
		case cumulative < 0.80:
			abc = model.ClassA
		case cumulative < 0.95:
			abc = model.ClassB
		}
		cumulative += share

		xyz := model.ClassZ
		if p.baseline.Mean > 0 {
			switch {
			case p.cv < 0.5:
				xyz = model.ClassX
			case p.cv < 1.0:
				xyz = model.ClassY
			}
		}

		velocity := model.VelocitySlow
		switch {
		case p.baseline.Mean >= 10:
			velocity = model.VelocityFast
		case p.baseline.Mean >= 2:
			velocity = model.VelocityMedium
		}

		out = append(out, model.ProductSegment{
			EntityID:            p.pattern.EntityID,
			ABC:                 abc,
			XYZ:                 xyz,
			Velocity:            velocity,
			StrategicImportance: importance(abc, xyz),
			RevenueShare:        share,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func importance(abc model.ABCClass, xyz model.XYZClass) model.Priority {
	switch {
	case abc == model.ClassA && xyz == model.ClassX:
		return model.PriorityCritical
	case abc == model.ClassA:
		return model.PriorityHigh
	case abc == model.ClassB:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
