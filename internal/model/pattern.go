package model

import "time"

// PatternType classifies an entity's demand behaviour.
type PatternType string

const (
	PatternSeasonal PatternType = "SEASONAL"
	PatternTrending PatternType = "TRENDING"
	PatternStable   PatternType = "STABLE"
	PatternErratic  PatternType = "ERRATIC"
)

// TrendDirection of the fitted demand slope.
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// StatisticalBaseline summarizes an entity's historical demand.
type StatisticalBaseline struct {
	EntityID           string                 `json:"entity_id"`
	Mean               float64                `json:"mean"`
	StdDev             float64                `json:"std_dev"`
	Median             float64                `json:"median"`
	Q25                float64                `json:"q25"`
	Q75                float64                `json:"q75"`
	IQR                float64                `json:"iqr"`
	SeasonalAdjustment map[time.Month]float64 `json:"seasonal_adjustment,omitempty"`
	TrendCoefficient   float64                `json:"trend_coefficient"`
	Days               int                    `json:"days"`
	ComputedAt         time.Time              `json:"computed_at"`
}

// SeasonalMultiplier returns the multiplier for month m, 1 when unknown.
func (b StatisticalBaseline) SeasonalMultiplier(m time.Month) float64 {
	if v, ok := b.SeasonalAdjustment[m]; ok && v > 0 {
		return v
	}
	return 1
}

// DemandPattern is the pattern-analysis verdict for one entity.
type DemandPattern struct {
	EntityID            string         `json:"entity_id"`
	PatternType         PatternType    `json:"pattern_type"`
	Confidence          float64        `json:"confidence"`
	Volatility          float64        `json:"volatility"`
	SeasonalityStrength float64        `json:"seasonality_strength"`
	TrendDirection      TrendDirection `json:"trend_direction"`
	TrendStrength       float64        `json:"trend_strength"`
}

// ABCClass ranks entities by revenue contribution.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// XYZClass ranks entities by demand predictability.
type XYZClass string

const (
	ClassX XYZClass = "X"
	ClassY XYZClass = "Y"
	ClassZ XYZClass = "Z"
)

// Velocity buckets average daily throughput.
type Velocity string

const (
	VelocityFast   Velocity = "FAST"
	VelocityMedium Velocity = "MEDIUM"
	VelocitySlow   Velocity = "SLOW"
)

// ProductSegment is the ABC/XYZ segmentation of an entity.
type ProductSegment struct {
	EntityID            string   `json:"entity_id"`
	ABC                 ABCClass `json:"abc_class"`
	XYZ                 XYZClass `json:"xyz_class"`
	Velocity            Velocity `json:"velocity"`
	StrategicImportance Priority `json:"strategic_importance"`
	RevenueShare        float64  `json:"revenue_share"`
}
