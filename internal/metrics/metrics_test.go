package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"DemandSentinel/internal/model"
)

func TestStageFinished(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.StageFinished(model.StageReport{Stage: model.StageForecasting, Success: true, Duration: 2 * time.Second})
	m.StageFinished(model.StageReport{Stage: model.StageForecasting, Error: "boom"})
	m.StageFinished(model.StageReport{Stage: model.StageContextEnrichment, Skipped: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageResultsTotal.WithLabelValues("FORECASTING", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageResultsTotal.WithLabelValues("FORECASTING", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageResultsTotal.WithLabelValues("CONTEXT_ENRICHMENT", OutcomeSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
}

func TestRunFinished(t *testing.T) {
	m := New(prometheus.NewRegistry())
	start := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)
	m.RunFinished(&model.RunResult{
		Status:     model.RunDone,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Anomalies: []model.AnomalyResult{
			{AnomalyType: model.AnomalyDemandSpike, Severity: model.SeverityCritical},
			{AnomalyType: model.AnomalyDemandSpike, Severity: model.SeverityCritical},
		},
		Alerts: []model.Alert{{Type: model.AlertStockoutRisk, Severity: model.SeverityHigh}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("DONE")))
	assert.Equal(t, float64(start.Add(3*time.Second).Unix()), testutil.ToFloat64(m.LastRunTimestamp))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnomaliesDetected.WithLabelValues(string(model.AnomalyDemandSpike), "CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsRaised.WithLabelValues("STOCKOUT_RISK", "HIGH")))
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("GET", "/runs", 200, 0.01)
	m.ObserveRequest("GET", "/runs", 200, 0.02)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/runs", "200")))
}
