package calculator

import (
	"errors"
	"math"
)

// CalculateEOQ returns the economic order quantity sqrt(2DS/H).
func CalculateEOQ(annualDemand, orderingCost, holdingCostPerUnit float64) (float64, error) {
	if holdingCostPerUnit <= 0 {
		return 0, errors.New("holding cost must be positive")
	}
	if annualDemand < 0 || orderingCost < 0 {
		return 0, errors.New("demand and ordering cost must not be negative")
	}
	return math.Sqrt(2 * annualDemand * orderingCost / holdingCostPerUnit), nil
}

// ServiceLevelZ maps a cycle service level to its one-sided normal quantile.
var serviceLevelZ = []struct {
	Level float64
	Z     float64
}{
	{0.99, 2.33},
	{0.98, 2.05},
	{0.975, 1.96},
	{0.95, 1.65},
	{0.90, 1.28},
	{0.85, 1.04},
	{0.80, 0.84},
}

// ZForServiceLevel returns the z quantile for the highest tabulated level
// not above level, 0.84 below the table.
func ZForServiceLevel(level float64) float64 {
	for _, row := range serviceLevelZ {
		if level >= row.Level {
			return row.Z
		}
	}
	return 0.84
}

// CalculateSafetyStock returns z*std*sqrt(leadTime). With no demand variance
// it falls back to half the lead-time demand.
func CalculateSafetyStock(dailyMean, dailyStd, leadTimeDays, serviceLevel float64) float64 {
	if leadTimeDays <= 0 {
		return 0
	}
	if dailyStd <= 0 {
		return 0.5 * dailyMean * leadTimeDays
	}
	return ZForServiceLevel(serviceLevel) * dailyStd * math.Sqrt(leadTimeDays)
}

// CalculateReorderPoint is lead-time demand plus safety stock.
func CalculateReorderPoint(dailyMean, leadTimeDays, safetyStock float64) float64 {
	return dailyMean*leadTimeDays + safetyStock
}
