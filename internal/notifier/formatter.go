package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

// digestLimit caps the alerts and recommendations listed in a digest.
const digestLimit = 5

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityHigh:
		return "🟠"
	case model.SeverityMedium:
		return "🟡"
	default:
		return "⚪"
	}
}

// FormatRunDigest formats a finished run into a Telegram message.
func FormatRunDigest(r *model.RunResult) string {
	var b strings.Builder

	icon := "✅"
	if r.Status != model.RunDone {
		icon = "❌"
	}
	b.WriteString(fmt.Sprintf("%s <b>DemandSentinel run</b> %s | %s\n\n", icon, shortID(r.RunID), r.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Status: %s (%v)\n", r.Status, r.Duration().Round(time.Millisecond)))
	if r.Status == model.RunFailed {
		b.WriteString(fmt.Sprintf("Failed at %s: %s\n", r.FailedStage, html.EscapeString(r.Error)))
	}
	if degraded := r.DegradedStages(); len(degraded) > 0 {
		names := make([]string, len(degraded))
		for i, s := range degraded {
			names[i] = string(s)
		}
		b.WriteString(fmt.Sprintf("Degraded: %s\n", strings.Join(names, ", ")))
	}
	b.WriteString(fmt.Sprintf("Patterns: %d | Anomalies: %d | Alerts: %d | Recommendations: %d\n\n",
		len(r.DemandPatterns), len(r.Anomalies), len(r.Alerts), len(r.Recommendations)))

	if len(r.Alerts) > 0 {
		b.WriteString("🚨 <b>Alerts:</b>\n")
		for i, a := range r.Alerts {
			if i == digestLimit {
				b.WriteString(fmt.Sprintf("  … %d more\n", len(r.Alerts)-digestLimit))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s %s: %s\n", severityIcon(a.Severity), a.Type, a.EntityID, html.EscapeString(a.Message)))
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("💡 <b>Recommendations:</b>\n")
		for i, rec := range r.Recommendations {
			if i == digestLimit {
				b.WriteString(fmt.Sprintf("  … %d more\n", len(r.Recommendations)-digestLimit))
				break
			}
			b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", rec.Priority, rec.EntityID, html.EscapeString(rec.Action)))
		}
		b.WriteString("\n")
	}

	k := r.KPIs
	b.WriteString("📈 <b>KPIs:</b>\n")
	b.WriteString(fmt.Sprintf("  MAPE: %.1f%% | Service level: %.1f%%\n", k.ForecastAccuracy.OverallMAPE, k.ServiceMetrics.ServiceLevel))
	b.WriteString(fmt.Sprintf("  Inventory value: %.0f | Monthly sales: %.0f\n", k.FinancialMetrics.InventoryValue, k.FinancialMetrics.MonthlySales))
	b.WriteString(fmt.Sprintf("  Confidence: %.2f", k.AIPerformance.OverallConfidence))
	return b.String()
}

// FormatCriticalAlerts lists the CRITICAL alerts of a run. It returns an
// empty string when there are none.
func FormatCriticalAlerts(alerts []model.Alert) string {
	var critical []model.Alert
	for _, a := range alerts {
		if a.Severity == model.SeverityCritical {
			critical = append(critical, a)
		}
	}
	if len(critical) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔴 <b>%d critical alerts</b>\n\n", len(critical)))
	for _, a := range critical {
		b.WriteString(fmt.Sprintf("<b>%s</b> %s\n%s\n", a.Type, a.EntityID, html.EscapeString(a.Message)))
		if a.RecommendedAction != "" {
			b.WriteString(fmt.Sprintf("→ %s\n", html.EscapeString(a.RecommendedAction)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatOptimizerReport formats an optimizer pass.
func FormatOptimizerReport(rep optimizer.Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🛠 <b>Optimizer report</b> | %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Runs analysed: %d | Confidence: %.2f\n", rep.Runs, rep.Confidence))
	if len(rep.Bottlenecks) > 0 {
		b.WriteString(fmt.Sprintf("Bottlenecks: %s\n", strings.Join(rep.Bottlenecks, ", ")))
	}
	if len(rep.Recommendations) == 0 {
		b.WriteString("\nNo tuning changes suggested.")
		return b.String()
	}
	b.WriteString("\n")
	for _, r := range rep.Recommendations {
		b.WriteString(fmt.Sprintf("[%s] %s: %g → %g (+%.0f%%)\n", r.Priority, r.Component, r.CurrentValue, r.RecommendedValue, r.Expected.PerformanceGain))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatHealth formats worker health reports.
func FormatHealth(reports []worker.HealthReport) string {
	var b strings.Builder
	b.WriteString("🩺 <b>Worker health</b>\n\n")
	if len(reports) == 0 {
		b.WriteString("No executions yet.")
		return b.String()
	}
	for _, h := range reports {
		b.WriteString(fmt.Sprintf("%s: %s (errors %.0f%%, confidence %.2f, %d runs)\n",
			h.WorkerID, h.Status, h.ErrorRate*100, h.MeanConfidence, h.Executions))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRunList formats persisted run summaries, newest first.
func FormatRunList(runs []recorder.RunSummary) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent runs</b>\n\n")
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("%s %s %s: %d anomalies, %d alerts\n",
			shortID(r.RunID), r.StartedAt.Format("01-02 15:04"), r.Status, r.Anomalies, r.Alerts))
	}
	return strings.TrimRight(b.String(), "\n")
}
