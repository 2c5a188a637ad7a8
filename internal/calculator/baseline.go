package calculator

import (
	"time"

	"DemandSentinel/internal/model"
)

// BaselineOptions controls the window a baseline is computed over.
type BaselineOptions struct {
	// End is the last day included in the window.
	End        time.Time
	WindowDays int
	Seasonal   bool
}

// ComputeBaseline summarizes an entity's daily demand over the trailing
// window ending at opts.End. Days before the entity's first sale are not
// part of its history; gaps after it count as zero demand. An entity with
// no sales in the window gets a zeroed baseline.
func ComputeBaseline(entityID string, records []model.SalesRecord, opts BaselineOptions) model.StatisticalBaseline {
	b := model.StatisticalBaseline{EntityID: entityID, ComputedAt: opts.End}

	inWindow := filterUntil(records, opts.End)
	span := ActiveSpan(inWindow, opts.End, opts.WindowDays)
	if span == 0 {
		return b
	}
	series := DailyTotals(inWindow, opts.End, span)
	return BaselineFromSeries(entityID, series, opts.Seasonal, opts.End)
}

// BaselineFromSeries computes the summary statistics of a daily series.
func BaselineFromSeries(entityID string, series DailySeries, seasonal bool, at time.Time) model.StatisticalBaseline {
	b := model.StatisticalBaseline{EntityID: entityID, ComputedAt: at}
	values := series.Values
	if len(values) == 0 {
		return b
	}

	b.Days = len(values)
	b.Mean = Mean(values)
	b.StdDev = StdDev(values)

	sorted := Sorted(values)
	b.Median = Percentile(sorted, 0.5)
	b.Q25 = Percentile(sorted, 0.25)
	b.Q75 = Percentile(sorted, 0.75)
	b.IQR = b.Q75 - b.Q25
	b.TrendCoefficient = Slope(values)

	if seasonal && b.Mean > 0 {
		monthly := series.MonthlyMeans()
		b.SeasonalAdjustment = make(map[time.Month]float64, len(monthly))
		for m, avg := range monthly {
			b.SeasonalAdjustment[m] = avg / b.Mean
		}
	}
	return b
}

func filterUntil(records []model.SalesRecord, end time.Time) []model.SalesRecord {
	last := Day(end)
	out := make([]model.SalesRecord, 0, len(records))
	for _, r := range records {
		if !Day(r.Timestamp).After(last) {
			out = append(out, r)
		}
	}
	return out
}
