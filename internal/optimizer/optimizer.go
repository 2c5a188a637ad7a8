package optimizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

// RecommendationType groups optimizer suggestions.
type RecommendationType string

const (
	ThresholdAdjustment   RecommendationType = "THRESHOLD_ADJUSTMENT"
	AlgorithmOptimization RecommendationType = "ALGORITHM_OPTIMIZATION"
	ResourceAllocation    RecommendationType = "RESOURCE_ALLOCATION"
	ParameterTuning       RecommendationType = "PARAMETER_TUNING"
)

// Improvement is the expected effect of applying a recommendation, in percent.
type Improvement struct {
	PerformanceGain float64 `json:"performance_gain"`
	AccuracyImpact  float64 `json:"accuracy_impact"`
	ResourceSavings float64 `json:"resource_savings"`
}

// Recommendation is one suggested tuning change.
type Recommendation struct {
	Component        string             `json:"component"`
	Type             RecommendationType `json:"type"`
	CurrentValue     float64            `json:"current_value"`
	RecommendedValue float64            `json:"recommended_value"`
	Expected         Improvement        `json:"expected_improvement"`
	Priority         model.Priority     `json:"priority"`
	Rationale        string             `json:"rationale"`
}

// Targets are the levels the optimizer holds the system to.
type Targets struct {
	AlertVolume          float64
	MaxFalsePositiveRate float64
	MaxCPUUsage          float64
	MaxMemoryUsage       float64
	MinPatternConfidence float64
	MinForecastAccuracy  float64
	Stages               map[string]worker.Targets
}

// DefaultTargets returns the stock optimizer targets.
func DefaultTargets() Targets {
	return Targets{
		AlertVolume:          10,
		MaxFalsePositiveRate: 0.2,
		MaxCPUUsage:          80,
		MaxMemoryUsage:       85,
		MinPatternConfidence: 0.8,
		MinForecastAccuracy:  0.85,
		Stages:               worker.DefaultTargets(),
	}
}

// Report is the outcome of one optimizer pass.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Runs            int              `json:"runs"`
	Recommendations []Recommendation `json:"recommendations"`
	Bottlenecks     []string         `json:"bottlenecks"`
	Confidence      float64          `json:"confidence"`
	Summary         string           `json:"summary"`
}

type stageStats struct {
	duration time.Duration
	accuracy float64
	runs     int
	accurate int
}

// Analyze applies the tuning rules to the retained runs. The most recent
// run supplies the current parameter values.
func Analyze(runs []RunTelemetry, t Targets, now time.Time) Report {
	rep := Report{GeneratedAt: now, Runs: len(runs), Confidence: 0.8}
	if len(runs) == 0 {
		rep.Summary = "no telemetry recorded yet"
		return rep
	}
	latest := runs[len(runs)-1]
	var recs []Recommendation

	alerts, low := 0, 0
	for _, r := range runs {
		alerts += r.Alerts
		low += r.SeverityMix[model.SeverityLow]
	}
	volume := float64(alerts) / float64(len(runs))
	if volume > t.AlertVolume*1.5 {
		cur := latest.Params.AnomalyThreshold
		recs = append(recs, Recommendation{
			Component:        "anomaly_threshold",
			Type:             ThresholdAdjustment,
			CurrentValue:     cur,
			RecommendedValue: cur + 0.5,
			Expected:         Improvement{PerformanceGain: 15, AccuracyImpact: -2, ResourceSavings: 10},
			Priority:         model.PriorityHigh,
			Rationale:        fmt.Sprintf("%.1f alerts per run against a target of %.0f; fewer alerts at slightly lower sensitivity", volume, t.AlertVolume),
		})
	}

	if alerts > 0 {
		fp := float64(low) / float64(alerts)
		if fp > t.MaxFalsePositiveRate {
			cur := latest.Params.Heuristics.ForecastDeviationFactor
			recs = append(recs, Recommendation{
				Component:        "forecast_deviation_factor",
				Type:             ThresholdAdjustment,
				CurrentValue:     cur,
				RecommendedValue: cur + 0.1,
				Expected:         Improvement{PerformanceGain: 20, AccuracyImpact: 5, ResourceSavings: 8},
				Priority:         model.PriorityMedium,
				Rationale:        fmt.Sprintf("estimated false-positive rate %.1f%%", fp*100),
			})
		}
	}

	if latest.StockoutAlerts > 0 {
		cur := latest.Params.Heuristics.SafetyStockMultiplier
		if cur <= 0 {
			cur = 1
		}
		recs = append(recs, Recommendation{
			Component:        "safety_stock_multiplier",
			Type:             ParameterTuning,
			CurrentValue:     cur,
			RecommendedValue: cur * 1.2,
			Expected:         Improvement{PerformanceGain: 25, ResourceSavings: -5},
			Priority:         model.PriorityHigh,
			Rationale:        fmt.Sprintf("%d stockout alerts in the last run", latest.StockoutAlerts),
		})
	}

	stats := make(map[string]*stageStats)
	var order []string
	for _, r := range runs {
		for _, s := range r.Stages {
			if s.Skipped || s.WorkerID == "" {
				continue
			}
			st, ok := stats[s.WorkerID]
			if !ok {
				st = &stageStats{}
				stats[s.WorkerID] = st
				order = append(order, s.WorkerID)
			}
			st.duration += s.Duration
			st.runs++
			if s.Success {
				st.accuracy += s.Accuracy
				st.accurate++
			}
		}
	}
	sort.Strings(order)
	for _, id := range order {
		target, ok := t.Stages[id]
		if !ok {
			continue
		}
		st := stats[id]
		mean := st.duration / time.Duration(st.runs)
		budgetMs := float64(target.MaxExecutionTime.Milliseconds())
		meanMs := float64(mean.Milliseconds())
		if target.MaxExecutionTime > 0 && mean > target.MaxExecutionTime*7/10 {
			recs = append(recs, Recommendation{
				Component:        id + "_execution_time_ms",
				Type:             AlgorithmOptimization,
				CurrentValue:     meanMs,
				RecommendedValue: meanMs * 0.8,
				Expected:         Improvement{PerformanceGain: 20, ResourceSavings: 15},
				Priority:         model.PriorityMedium,
				Rationale:        fmt.Sprintf("%s averages %.0fms of a %.0fms budget", id, meanMs, budgetMs),
			})
		}
		if target.MaxExecutionTime > 0 && mean > target.MaxExecutionTime*8/10 {
			rep.Bottlenecks = append(rep.Bottlenecks, id)
		}
		if st.accurate > 0 {
			acc := st.accuracy / float64(st.accurate)
			if acc < target.MinAccuracy {
				recs = append(recs, Recommendation{
					Component:        id + "_accuracy",
					Type:             ParameterTuning,
					CurrentValue:     acc,
					RecommendedValue: target.MinAccuracy,
					Expected:         Improvement{AccuracyImpact: 15},
					Priority:         model.PriorityHigh,
					Rationale:        fmt.Sprintf("%s accuracy %.1f%% below its %.0f%% target", id, acc*100, target.MinAccuracy*100),
				})
			}
		}
	}

	cpu, mem := peakUsage(latest)
	if cpu > t.MaxCPUUsage {
		recs = append(recs, Recommendation{
			Component:        "worker_pool_utilization",
			Type:             ResourceAllocation,
			CurrentValue:     cpu,
			RecommendedValue: 70,
			Expected:         Improvement{PerformanceGain: 25, ResourceSavings: 20},
			Priority:         model.PriorityCritical,
			Rationale:        "fan-out pool saturated: raise the concurrency limit or reduce the entity count",
		})
	}
	if mem > t.MaxMemoryUsage {
		recs = append(recs, Recommendation{
			Component:        "memory_usage",
			Type:             ResourceAllocation,
			CurrentValue:     mem,
			RecommendedValue: 75,
			Expected:         Improvement{PerformanceGain: 15, ResourceSavings: 10},
			Priority:         model.PriorityHigh,
			Rationale:        "heap usage high: shorten the history window or split the dataset",
		})
	}

	if latest.Patterns > 0 && latest.MeanPatternConfidence < t.MinPatternConfidence {
		cur := float64(latest.Params.BaselineWindowDays)
		recs = append(recs, Recommendation{
			Component:        "baseline_window_days",
			Type:             ParameterTuning,
			CurrentValue:     cur,
			RecommendedValue: cur + 30,
			Expected:         Improvement{AccuracyImpact: 12, ResourceSavings: -5},
			Priority:         model.PriorityMedium,
			Rationale:        fmt.Sprintf("mean pattern confidence %.1f%%", latest.MeanPatternConfidence*100),
		})
	}
	if latest.ShortTermForecasts > 0 && latest.MeanForecastAccuracy < t.MinForecastAccuracy {
		recs = append(recs, Recommendation{
			Component:        "forecast_ensemble_size",
			Type:             AlgorithmOptimization,
			CurrentValue:     1,
			RecommendedValue: 3,
			Expected:         Improvement{AccuracyImpact: 18, ResourceSavings: -10},
			Priority:         model.PriorityHigh,
			Rationale:        fmt.Sprintf("mean short-term forecast accuracy %.1f%%", latest.MeanForecastAccuracy*100),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority.Weight() != recs[j].Priority.Weight() {
			return recs[i].Priority.Weight() > recs[j].Priority.Weight()
		}
		return recs[i].Expected.PerformanceGain > recs[j].Expected.PerformanceGain
	})
	rep.Recommendations = recs
	rep.Confidence = confidence(recs)
	rep.Summary = summarize(rep)
	return rep
}

func peakUsage(r RunTelemetry) (cpu, mem float64) {
	for _, s := range r.Stages {
		cpu = max(cpu, s.ResourceUsage)
		mem = max(mem, s.MemoryUsage)
	}
	return cpu, mem
}

func confidence(recs []Recommendation) float64 {
	if len(recs) == 0 {
		return 0.8
	}
	score := 0.7
	for _, r := range recs {
		if r.Priority == model.PriorityCritical {
			score += 0.1
		}
		if r.Expected.PerformanceGain > 15 {
			score += 0.05
		}
	}
	return min(0.95, score)
}

func summarize(rep Report) string {
	if len(rep.Recommendations) == 0 {
		return fmt.Sprintf("%d runs reviewed, no tuning needed", rep.Runs)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d runs reviewed, %d recommendations", rep.Runs, len(rep.Recommendations))
	if len(rep.Bottlenecks) > 0 {
		fmt.Fprintf(&b, ", bottlenecks: %s", strings.Join(rep.Bottlenecks, ", "))
	}
	for i, r := range rep.Recommendations {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s: %.2f -> %.2f", i+1, r.Priority, r.Component, r.CurrentValue, r.RecommendedValue)
	}
	return b.String()
}
