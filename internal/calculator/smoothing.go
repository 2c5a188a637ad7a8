package calculator

import "math"

const seasonLength = 7

// SeasonalNaive averages the same weekday across the history.
func SeasonalNaive(values []float64, daysAhead int) Prediction {
	n := len(values)
	if n == 0 {
		return Prediction{Confidence: 0.65}
	}
	idx := (n + daysAhead - 1) % seasonLength
	var same []float64
	for i := idx; i < n; i += seasonLength {
		same = append(same, values[i])
	}
	return Prediction{Value: Mean(same), Uncertainty: StdDev(same), Confidence: 0.65}
}

// HoltWinters is additive-trend, multiplicative-season smoothing over a
// weekly season.
func HoltWinters(values []float64, daysAhead int) Prediction {
	if len(values) < 2*seasonLength {
		return Prediction{Value: Mean(values), Uncertainty: StdDev(values), Confidence: 0.5}
	}
	const alpha, beta, gamma = 0.3, 0.1, 0.2

	level := Mean(values[:seasonLength])
	if level <= 0 {
		return Prediction{Value: Mean(values), Uncertainty: StdDev(values), Confidence: 0.5}
	}
	trend := 0.0
	seasonal := make([]float64, seasonLength)
	for i := range seasonal {
		var same []float64
		for j := i; j < len(values); j += seasonLength {
			same = append(same, values[j])
		}
		seasonal[i] = Mean(same) / level
		if seasonal[i] <= 0 {
			seasonal[i] = 1
		}
	}

	for i := seasonLength; i < len(values); i++ {
		prev := level
		s := seasonal[i%seasonLength]
		level = alpha*(values[i]/s) + (1-alpha)*(prev+trend)
		trend = beta*(level-prev) + (1-beta)*trend
		if level > 0 {
			seasonal[i%seasonLength] = gamma*(values[i]/level) + (1-gamma)*s
		}
	}

	forecast := (level + trend*float64(daysAhead)) * seasonal[(len(values)+daysAhead-1)%seasonLength]

	residuals := make([]float64, 0, len(values)-seasonLength)
	for i := seasonLength; i < len(values); i++ {
		residuals = append(residuals, math.Abs(values[i]-level*seasonal[i%seasonLength]))
	}
	uncertainty := Mean(residuals) * 1.5
	confidence := 0.6
	if forecast != 0 {
		confidence = math.Max(0.6, 1-uncertainty/math.Abs(forecast))
	}
	return Prediction{Value: math.Max(0, forecast), Uncertainty: uncertainty, Confidence: confidence}
}

// Croston forecasts the daily rate of intermittent demand from smoothed
// non-zero sizes and the intervals between them.
func Croston(values []float64) Prediction {
	var sizes, intervals []float64
	last := -1
	for i, v := range values {
		if v <= 0 {
			continue
		}
		sizes = append(sizes, v)
		if last >= 0 {
			intervals = append(intervals, float64(i-last))
		}
		last = i
	}
	if len(sizes) < 2 {
		return Prediction{Confidence: 0.3}
	}

	const alpha = 0.1
	size := sizes[0]
	interval := intervals[0]
	for i := 1; i < len(sizes); i++ {
		size = alpha*sizes[i] + (1-alpha)*size
		if i < len(intervals) {
			interval = alpha*intervals[i] + (1-alpha)*interval
		}
	}
	if interval <= 0 {
		interval = 1
	}
	rate := size / interval
	return Prediction{
		Value:       math.Max(0, rate),
		Uncertainty: StdDev(sizes) / math.Sqrt(interval),
		Confidence:  math.Min(0.8, float64(len(sizes))/20),
	}
}
