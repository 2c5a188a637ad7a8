package calculator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/model"
)

var refNow = time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

func dailySales(entity string, end time.Time, quantities []float64) []model.SalesRecord {
	records := make([]model.SalesRecord, 0, len(quantities))
	start := Day(end).AddDate(0, 0, -(len(quantities) - 1))
	for i, q := range quantities {
		records = append(records, model.SalesRecord{
			EntityID:  entity,
			Timestamp: start.AddDate(0, 0, i).Add(9 * time.Hour),
			Quantity:  q,
			Revenue:   q * 25,
		})
	}
	return records
}

func TestComputeBaseline_Empty(t *testing.T) {
	b := ComputeBaseline("X", nil, BaselineOptions{End: refNow, WindowDays: 90, Seasonal: true})
	assert.Equal(t, "X", b.EntityID)
	assert.Zero(t, b.Mean)
	assert.Zero(t, b.StdDev)
	assert.Zero(t, b.Median)
	assert.Zero(t, b.IQR)
	assert.Zero(t, b.TrendCoefficient)
	assert.Empty(t, b.SeasonalAdjustment)
	for _, v := range []float64{b.Mean, b.StdDev, b.Q25, b.Q75} {
		assert.False(t, math.IsNaN(v))
	}
}

func TestComputeBaseline_FlatSeries(t *testing.T) {
	q := make([]float64, 90)
	for i := range q {
		q[i] = 10
	}
	b := ComputeBaseline("X", dailySales("X", refNow, q), BaselineOptions{End: refNow, WindowDays: 90, Seasonal: true})
	assert.Equal(t, 90, b.Days)
	assert.InDelta(t, 10, b.Mean, 1e-9)
	assert.InDelta(t, 0, b.StdDev, 1e-9)
	assert.InDelta(t, 10, b.Median, 1e-9)
	assert.InDelta(t, 0, b.TrendCoefficient, 1e-9)
	for m, v := range b.SeasonalAdjustment {
		assert.InDelta(t, 1, v, 1e-9, "month %s", m)
	}
}

func TestComputeBaseline_GapsCountAsZero(t *testing.T) {
	records := []model.SalesRecord{
		{EntityID: "X", Timestamp: refNow.AddDate(0, 0, -3), Quantity: 8},
		{EntityID: "X", Timestamp: refNow, Quantity: 8},
	}
	b := ComputeBaseline("X", records, BaselineOptions{End: refNow, WindowDays: 90})
	assert.Equal(t, 4, b.Days)
	assert.InDelta(t, 4, b.Mean, 1e-9)
	assert.Greater(t, b.StdDev, 0.0)
}

func TestComputeBaseline_NewEntityUsesDaysSinceFirstSale(t *testing.T) {
	q := make([]float64, 14)
	for i := range q {
		q[i] = 6
	}
	b := ComputeBaseline("NEW", dailySales("NEW", refNow, q), BaselineOptions{End: refNow, WindowDays: 90})
	assert.Equal(t, 14, b.Days)
	assert.InDelta(t, 6, b.Mean, 1e-9)
	assert.InDelta(t, 0, b.StdDev, 1e-9)
}

func TestComputeBaseline_WindowExcludesLaterSales(t *testing.T) {
	records := []model.SalesRecord{
		{EntityID: "X", Timestamp: refNow.AddDate(0, 0, -10), Quantity: 5},
		{EntityID: "X", Timestamp: refNow, Quantity: 500},
	}
	b := ComputeBaseline("X", records, BaselineOptions{End: refNow.AddDate(0, 0, -7), WindowDays: 90})
	assert.Equal(t, 4, b.Days)
	assert.InDelta(t, 1.25, b.Mean, 1e-9)
}

func TestComputeBaseline_QuartileOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(120)
		q := make([]float64, n)
		for j := range q {
			q[j] = float64(rng.Intn(50))
		}
		b := ComputeBaseline("E", dailySales("E", refNow, q), BaselineOptions{End: refNow, WindowDays: 90, Seasonal: true})
		require.GreaterOrEqual(t, b.StdDev, 0.0)
		require.LessOrEqual(t, b.Q25, b.Median)
		require.LessOrEqual(t, b.Median, b.Q75)
		require.InDelta(t, b.Q75-b.Q25, b.IQR, 1e-9)
		require.False(t, math.IsNaN(b.Mean))
	}
}

func TestComputeBaseline_SeasonalMultipliers(t *testing.T) {
	// 30 days of June at 20/day after 31 days of May at 10/day.
	q := make([]float64, 61)
	for i := range q {
		if i < 31 {
			q[i] = 10
		} else {
			q[i] = 20
		}
	}
	b := ComputeBaseline("S", dailySales("S", refNow, q), BaselineOptions{End: refNow, WindowDays: 90, Seasonal: true})
	require.Len(t, b.SeasonalAdjustment, 2)
	assert.Greater(t, b.SeasonalMultiplier(time.June), 1.0)
	assert.Less(t, b.SeasonalMultiplier(time.May), 1.0)
	assert.Equal(t, 1.0, b.SeasonalMultiplier(time.January))

	strength := SeasonalityStrength(b.SeasonalAdjustment)
	assert.InDelta(t, 0.5, strength, 1e-9)

	off := ComputeBaseline("S", dailySales("S", refNow, q), BaselineOptions{End: refNow, WindowDays: 90})
	assert.Empty(t, off.SeasonalAdjustment)
}

func TestDailySeriesAt(t *testing.T) {
	s := DailyTotals(dailySales("X", refNow, []float64{1, 2, 3}), refNow, 3)
	v, ok := s.At(refNow)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = s.At(refNow.AddDate(0, 0, 1))
	assert.False(t, ok)
	assert.Equal(t, []float64{2, 3}, s.Tail(2))
}
