// Package metrics exposes Prometheus collectors for pipeline runs and the HTTP API.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"DemandSentinel/internal/model"
)

// Stage outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors. It satisfies the coordinator's observer
// contract so every run is counted as it happens.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	LastRunTimestamp    prometheus.Gauge
	StageResultsTotal   *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	AnomaliesDetected   *prometheus.CounterVec
	AlertsRaised        *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_runs_total",
				Help: "Total number of pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		RunDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_last_run_timestamp_seconds",
			Help: "Unix time the last pipeline run finished",
		}),
		StageResultsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_stage_results_total",
				Help: "Stage executions by outcome",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_stage_duration_seconds",
				Help:    "Stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		AnomaliesDetected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_anomalies_detected_total",
				Help: "Total number of anomalies detected",
			},
			[]string{"type", "severity"},
		),
		AlertsRaised: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_total",
				Help: "Total number of alerts raised",
			},
			[]string{"type", "severity"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// StageFinished records one stage report.
func (m *Metrics) StageFinished(r model.StageReport) {
	outcome := OutcomeSuccess
	switch {
	case r.Skipped:
		outcome = OutcomeSkipped
	case !r.Success:
		outcome = OutcomeFailed
	}
	stage := string(r.Stage)
	m.StageResultsTotal.WithLabelValues(stage, outcome).Inc()
	if !r.Skipped {
		m.StageDuration.WithLabelValues(stage).Observe(r.Duration.Seconds())
	}
}

// RunFinished records a terminal run.
func (m *Metrics) RunFinished(r *model.RunResult) {
	m.RunsTotal.WithLabelValues(string(r.Status)).Inc()
	m.RunDurationSeconds.Observe(r.Duration().Seconds())
	m.LastRunTimestamp.Set(float64(r.FinishedAt.Unix()))
	for _, a := range r.Anomalies {
		m.AnomaliesDetected.WithLabelValues(string(a.AnomalyType), string(a.Severity)).Inc()
	}
	for _, a := range r.Alerts {
		m.AlertsRaised.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
