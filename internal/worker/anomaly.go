package worker

import (
	"context"
	"time"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// AnomalyWorker runs the anomaly engine over the current state.
type AnomalyWorker struct {
	engine *anomaly.Engine
	log    logger.Logger
}

func NewAnomalyWorker(engine *anomaly.Engine, log logger.Logger) *AnomalyWorker {
	return &AnomalyWorker{engine: engine, log: log}
}

func (w *AnomalyWorker) ID() string                 { return AnomalyID }
func (w *AnomalyWorker) Stage() model.Stage         { return model.StageAnomalyDetection }
func (w *AnomalyWorker) Dependencies() []Dependency { return []Dependency{salesHistory} }

func (w *AnomalyWorker) Run(ctx context.Context, in Input, snap model.PipelineState) Result {
	start := time.Now()
	report, err := w.engine.Detect(ctx, anomaly.Input{
		Now:       in.Now,
		Params:    in.Params,
		Dataset:   snap.RawInputs,
		Patterns:  snap.DemandPatterns,
		Forecasts: append(snap.RawInputs.PriorForecasts, snap.Forecasts.All()...),
	})
	if err != nil {
		return failed(w.ID(), start, err)
	}

	warnings := make([]string, 0, len(report.Rejected))
	for _, rej := range report.Rejected {
		w.log.Warnf(ctx, "supplier alert rejected: %v", rej)
		warnings = append(warnings, rej.Error())
	}

	elapsed := time.Since(start)
	w.log.Debugf(ctx, "detected %d anomalies across %d entities", len(report.Anomalies), report.Entities)
	return Result{
		WorkerID:      w.ID(),
		ExecutionTime: elapsed,
		Success:       true,
		Confidence:    report.Confidence,
		Output:        model.StateUpdate{Anomalies: report.Anomalies, Alerts: report.Alerts},
		Warnings:      warnings,
		Metrics: model.StageMetrics{
			Accuracy:   report.Confidence,
			Throughput: throughput(report.Entities, elapsed),
		},
	}
}
