package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 1e-9, "p=%.2f", tt.p)
	}
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
}

func TestVarianceIsPopulation(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 4.0, Variance(values), 1e-9)
	assert.InDelta(t, 2.0, StdDev(values), 1e-9)
}

func TestDegenerateInputsDoNotProduceNaN(t *testing.T) {
	for _, v := range []float64{Mean(nil), Variance(nil), StdDev([]float64{3}), Slope([]float64{1}), CoefficientOfVariation([]float64{0, 0})} {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 0.0, v)
	}
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{1, 3, 5, 7, 9}), 1e-9)
	assert.InDelta(t, 0.0, Slope([]float64{4, 4, 4}), 1e-9)
	assert.InDelta(t, -1.0, Slope([]float64{3, 2, 1}), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestCalculateSMA(t *testing.T) {
	v, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	assert.NoError(t, err)
	assert.Equal(t, 3.5, v)

	_, err = CalculateSMA([]float64{1}, 2)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1}, 0)
	assert.Error(t, err)
}

func TestForecastModels(t *testing.T) {
	flat := make([]float64, 28)
	for i := range flat {
		flat[i] = 10
	}
	assert.InDelta(t, 10, MovingAverage(flat).Value, 1e-9)
	assert.InDelta(t, 10, SimpleSmoothing(flat).Value, 1e-9)
	assert.InDelta(t, 10, SeasonalNaive(flat, 1).Value, 1e-9)
	assert.InDelta(t, 10, HoltWinters(flat, 3).Value, 1e-6)

	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(i)
	}
	p := LinearTrend(rising, 1)
	assert.InDelta(t, 20, p.Value, 1e-9)
	assert.InDelta(t, 1, p.Confidence, 1e-9)

	intermittent := []float64{0, 0, 6, 0, 0, 6, 0, 0, 6}
	c := Croston(intermittent)
	assert.InDelta(t, 2, c.Value, 1e-9)
	assert.Equal(t, 0.3, Croston([]float64{0, 5, 0}).Confidence)
}

func TestTrendStrength(t *testing.T) {
	assert.Equal(t, 0.0, TrendStrength([]float64{5, 5, 5, 5}))
	assert.Equal(t, 0.0, TrendStrength(nil))
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 1.0, TrendStrength(up))
}

func TestInventoryFormulas(t *testing.T) {
	eoq, err := CalculateEOQ(3650, 50, 1.5)
	assert.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2*3650*50/1.5), eoq, 1e-9)

	_, err = CalculateEOQ(100, 50, 0)
	assert.Error(t, err)

	assert.Equal(t, 1.65, ZForServiceLevel(0.95))
	assert.Equal(t, 0.84, ZForServiceLevel(0.5))

	assert.InDelta(t, 70, CalculateSafetyStock(10, 0, 14, 0.95), 1e-9)
	assert.InDelta(t, 1.65*2*math.Sqrt(14), CalculateSafetyStock(10, 2, 14, 0.95), 1e-9)
	assert.InDelta(t, 210, CalculateReorderPoint(10, 14, 70), 1e-9)
}
