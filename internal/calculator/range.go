package calculator

import (
	"errors"
	"math"
	"time"
)

// MultiplierRange returns the highest and lowest monthly seasonal multiplier.
func MultiplierRange(multipliers map[time.Month]float64) (high, low float64, err error) {
	if len(multipliers) == 0 {
		return 0, 0, errors.New("no seasonal multipliers provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, v := range multipliers {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return high, low, nil
}

// SeasonalityStrength is (max-min)/max of the monthly multipliers, in [0,1].
// At least two months are needed to say anything about seasonality.
func SeasonalityStrength(multipliers map[time.Month]float64) float64 {
	if len(multipliers) < 2 {
		return 0
	}
	high, low, err := MultiplierRange(multipliers)
	if err != nil || high <= 0 {
		return 0
	}
	return Clamp((high-low)/high, 0, 1)
}
