package calculator

import "errors"

// Prediction is a point forecast with its spread and model confidence.
type Prediction struct {
	Value       float64
	Uncertainty float64
	Confidence  float64
}

// CalculateSMA computes the simple moving average over the last period values.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	return Mean(values[len(values)-period:]), nil
}

// MovingAverage predicts the mean of the last week (or fewer days).
func MovingAverage(values []float64) Prediction {
	window := 7
	if len(values) < window {
		window = len(values)
	}
	if window == 0 {
		return Prediction{Confidence: 0.6}
	}
	tail := values[len(values)-window:]
	sma, _ := CalculateSMA(values, window)
	return Prediction{Value: sma, Uncertainty: StdDev(tail), Confidence: 0.6}
}

// ExponentialSmoothing returns the level after simple exponential smoothing.
func ExponentialSmoothing(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0
	}
	level := values[0]
	for _, v := range values[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level
}

// SimpleSmoothing wraps ExponentialSmoothing as a forecast model.
func SimpleSmoothing(values []float64) Prediction {
	return Prediction{
		Value:       ExponentialSmoothing(values, 0.3),
		Uncertainty: StdDev(values) * 0.8,
		Confidence:  0.7,
	}
}
