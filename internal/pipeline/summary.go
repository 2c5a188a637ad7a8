package pipeline

import (
	"fmt"
	"strings"
	"time"

	"DemandSentinel/internal/model"
)

// Summary renders the one-paragraph execution summary of a run.
func Summary(r *model.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s %s in %s. ", r.RunID, r.Status, r.Duration().Round(time.Millisecond))

	executed, failed := 0, 0
	for _, s := range r.Stages {
		if s.Skipped {
			continue
		}
		executed++
		if !s.Success {
			failed++
		}
	}
	fmt.Fprintf(&b, "%d stages executed, %d failed", executed, failed)
	if degraded := r.DegradedStages(); len(degraded) > 0 {
		names := make([]string, len(degraded))
		for i, s := range degraded {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, " (degraded: %s)", strings.Join(names, ", "))
	}
	b.WriteString(". ")
	if r.Status == model.RunFailed {
		fmt.Fprintf(&b, "stopped at %s: %s. ", r.FailedStage, r.Error)
	}

	fmt.Fprintf(&b, "%d patterns, %d forecasts, %d optimized, %d anomalies, %d alerts, %d recommendations. ",
		len(r.DemandPatterns), r.Forecasts.Len(), len(r.Optimization), len(r.Anomalies), len(r.Alerts), len(r.Recommendations))
	fmt.Fprintf(&b, "overall confidence %.2f", r.KPIs.AIPerformance.OverallConfidence)
	if r.MarketContext != nil {
		fmt.Fprintf(&b, ", %s", r.MarketContext.Summary)
	}
	b.WriteString(".")
	return b.String()
}
