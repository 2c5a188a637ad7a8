package calculator

import "math"

// LinearFit is an ordinary least-squares line over day indices.
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	StdErr    float64
}

// Predict evaluates the line at index x.
func (f LinearFit) Predict(x float64) float64 { return f.Slope*x + f.Intercept }

// FitLinear fits y = slope*i + intercept.
func FitLinear(values []float64) LinearFit {
	n := len(values)
	if n == 0 {
		return LinearFit{}
	}
	if n < 2 {
		return LinearFit{Intercept: values[0]}
	}
	slope := Slope(values)
	mean := Mean(values)
	intercept := mean - slope*float64(n-1)/2

	ssRes, ssTot := 0.0, 0.0
	for i, v := range values {
		r := v - (slope*float64(i) + intercept)
		ssRes += r * r
		d := v - mean
		ssTot += d * d
	}
	fit := LinearFit{Slope: slope, Intercept: intercept}
	if ssTot > 0 {
		fit.RSquared = math.Max(0, 1-ssRes/ssTot)
	}
	if n > 2 {
		fit.StdErr = math.Sqrt(ssRes / float64(n-2))
	}
	return fit
}

// LinearTrend forecasts daysAhead days past the end of the series.
func LinearTrend(values []float64, daysAhead int) Prediction {
	fit := FitLinear(values)
	return Prediction{
		Value:       fit.Predict(float64(len(values) + daysAhead - 1)),
		Uncertainty: fit.StdErr,
		Confidence:  fit.RSquared,
	}
}

// TrendStrength is the fitted change across the window relative to the mean,
// capped at 1.
func TrendStrength(values []float64) float64 {
	mean := Mean(values)
	if mean <= 0 || len(values) < 2 {
		return 0
	}
	return Clamp(math.Abs(Slope(values))*float64(len(values))/mean, 0, 1)
}
