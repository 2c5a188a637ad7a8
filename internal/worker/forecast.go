package worker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/fanout"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// forecastHistoryDays caps how much history feeds the models.
const forecastHistoryDays = 365

// ForecastWorker produces daily ensemble forecasts per entity.
type ForecastWorker struct {
	log logger.Logger
}

func NewForecastWorker(log logger.Logger) *ForecastWorker {
	return &ForecastWorker{log: log}
}

func (w *ForecastWorker) ID() string                 { return ForecastID }
func (w *ForecastWorker) Stage() model.Stage         { return model.StageForecasting }
func (w *ForecastWorker) Dependencies() []Dependency { return []Dependency{demandPatterns} }

func (w *ForecastWorker) Run(ctx context.Context, in Input, snap model.PipelineState) Result {
	start := time.Now()
	byEntity := snap.RawInputs.SalesByEntity()
	patterns := make(map[string]model.DemandPattern, len(snap.DemandPatterns))
	for _, p := range snap.DemandPatterns {
		patterns[p.EntityID] = p
	}
	keys := fanout.SortedKeys(patterns)

	var meter poolMeter
	results, err := fanout.Map(ctx, in.Params.ConcurrencyLimit, keys, func(ctx context.Context, id string) ([]model.ForecastResult, error) {
		var out []model.ForecastResult
		meter.track(func() { out = ForecastEntity(patterns[id], byEntity[id], in.Now, in.Params.ForecastHorizonDays) })
		if len(out) == 0 {
			w.log.Debugf(logger.WithEntity(ctx, id), "no forecast produced")
		}
		return out, nil
	}, func(a, b model.ForecastResult) bool {
		if !a.ForecastDate.Equal(b.ForecastDate) {
			return a.ForecastDate.Before(b.ForecastDate)
		}
		return a.EntityID < b.EntityID
	})
	if err != nil {
		return failed(w.ID(), start, fmt.Errorf("forecasting: %w", err))
	}

	set := Bucket(results, in.Now)
	confidence := 0.0
	if len(results) > 0 {
		sum := 0.0
		for _, r := range results {
			sum += r.AccuracyScore
		}
		confidence = sum / float64(len(results))
	}

	elapsed := time.Since(start)
	w.log.Debugf(ctx, "produced %d forecasts for %d entities", len(results), len(keys))
	return Result{
		WorkerID:      w.ID(),
		ExecutionTime: elapsed,
		Success:       true,
		Confidence:    confidence,
		Output:        model.StateUpdate{Forecasts: &set},
		Metrics: model.StageMetrics{
			Accuracy:      confidence,
			Throughput:    throughput(len(results), elapsed),
			ResourceUsage: meter.utilization(elapsed, in.Params.ConcurrencyLimit),
		},
	}
}

// Bucket splits forecasts into short (up to 7 days), medium (8 to 30) and
// long (over 30) by distance from now.
func Bucket(results []model.ForecastResult, now time.Time) model.ForecastSet {
	var set model.ForecastSet
	today := calculator.Day(now)
	for _, r := range results {
		days := int(calculator.Day(r.ForecastDate).Sub(today).Hours() / 24)
		switch {
		case days <= 7:
			set.ShortTerm = append(set.ShortTerm, r)
		case days <= 30:
			set.MediumTerm = append(set.MediumTerm, r)
		default:
			set.LongTerm = append(set.LongTerm, r)
		}
	}
	return set
}

type namedPrediction struct {
	name string
	calculator.Prediction
}

// selectModels picks the model set for a pattern. Moving average always runs.
func selectModels(p model.DemandPattern, values []float64, daysAhead int) []namedPrediction {
	preds := []namedPrediction{{"moving_average", calculator.MovingAverage(values)}}
	n := len(values)
	switch p.PatternType {
	case model.PatternSeasonal:
		preds = append(preds, namedPrediction{"seasonal_naive", calculator.SeasonalNaive(values, daysAhead)})
		if n > 100 {
			preds = append(preds, namedPrediction{"holt_winters", calculator.HoltWinters(values, daysAhead)})
		}
	case model.PatternTrending:
		preds = append(preds, namedPrediction{"linear_trend", calculator.LinearTrend(values, daysAhead)})
		if n > 50 {
			preds = append(preds, namedPrediction{"exponential_smoothing", calculator.SimpleSmoothing(values)})
		}
	case model.PatternStable:
		preds = append(preds, namedPrediction{"exponential_smoothing", calculator.SimpleSmoothing(values)})
	case model.PatternErratic:
		preds = append(preds, namedPrediction{"croston", calculator.Croston(values)})
	}
	return preds
}

// ForecastEntity forecasts each day from tomorrow up to horizon days out.
func ForecastEntity(p model.DemandPattern, records []model.SalesRecord, now time.Time, horizon int) []model.ForecastResult {
	span := calculator.ActiveSpan(records, now, forecastHistoryDays)
	values := calculator.DailyTotals(records, now, span).Values
	today := calculator.Day(now)

	out := make([]model.ForecastResult, 0, horizon)
	for d := 1; d <= horizon; d++ {
		r := ensemble(selectModels(p, values, d))
		r.EntityID = p.EntityID
		r.ForecastDate = today.AddDate(0, 0, d)
		out = append(out, r)
	}
	return out
}

// ensemble combines model predictions weighted by their confidence.
func ensemble(preds []namedPrediction) model.ForecastResult {
	names := make([]string, 0, len(preds))
	var wSum, vSum, uSum, cSum float64
	for _, p := range preds {
		names = append(names, p.name)
		w := math.Max(p.Confidence, 0)
		wSum += w
		vSum += w * p.Value
		uSum += w * p.Uncertainty
		cSum += p.Confidence
	}
	var value, uncertainty float64
	if wSum > 0 {
		value = vSum / wSum
		uncertainty = uSum / wSum
	} else if len(preds) > 0 {
		for _, p := range preds {
			value += p.Value
			uncertainty += p.Uncertainty
		}
		value /= float64(len(preds))
		uncertainty /= float64(len(preds))
	}
	value = math.Max(0, value)
	uncertainty = math.Max(uncertainty, 0.1*value)

	accuracy := 0.1
	if len(preds) > 0 {
		accuracy = calculator.Clamp(cSum/float64(len(preds)), 0.1, 0.95)
	}
	return model.ForecastResult{
		PredictedDemand:      value,
		AccuracyScore:        accuracy,
		ConfidenceInterval95: [2]float64{math.Max(0, value-1.96*uncertainty), value + 1.96*uncertainty},
		ModelUsed:            "ensemble_" + strings.Join(names, "_"),
	}
}
