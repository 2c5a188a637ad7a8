// Package app assembles the pipeline and its collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/collector"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/pipeline"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

// ErrNoTelemetry is returned by Optimize when no telemetry store is configured.
var ErrNoTelemetry = errors.New("no telemetry store configured")

// Service runs analyses end to end: collect, run the pipeline, persist the
// result and feed the optimizer telemetry.
type Service struct {
	Collector   *collector.Collector
	Coordinator *pipeline.Coordinator
	Recorder    recorder.Recorder
	Telemetry   *optimizer.Store
	Anomalies   *anomaly.History
	Params      model.RunParams
	Targets     optimizer.Targets
	Clock       func() time.Time

	mu   sync.Mutex
	last *model.RunResult
	log  logger.Logger
}

// NewService creates a service. Telemetry may be nil.
func NewService(col *collector.Collector, coord *pipeline.Coordinator, rec recorder.Recorder, telemetry *optimizer.Store, params model.RunParams, targets optimizer.Targets, log logger.Logger) *Service {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Service{
		Collector:   col,
		Coordinator: coord,
		Recorder:    rec,
		Telemetry:   telemetry,
		Params:      params,
		Targets:     targets,
		Clock:       time.Now,
		log:         log,
	}
}

// Analyze collects a fresh dataset and runs the pipeline on it.
func (s *Service) Analyze(ctx context.Context) (*model.RunResult, error) {
	if s.Collector == nil {
		return nil, errors.New("no data source configured")
	}
	ds, err := s.Collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunDataset(ctx, ds), nil
}

// RunDataset runs the pipeline on ds with the service parameters.
func (s *Service) RunDataset(ctx context.Context, ds model.Dataset) *model.RunResult {
	return s.RunDatasetWith(ctx, ds, s.Params)
}

// DefaultParams returns the configured run parameters.
func (s *Service) DefaultParams() model.RunParams { return s.Params }

// RunDatasetWith runs the pipeline on ds with explicit parameters. Runs are
// serialized; the result is persisted and appended to the telemetry store.
// Persistence failures are logged and never change the run outcome.
func (s *Service) RunDatasetWith(ctx context.Context, ds model.Dataset, params model.RunParams) *model.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ds.PriorForecasts) == 0 {
		ds.PriorForecasts = s.priorForecasts(ctx)
	}
	result := s.Coordinator.Run(ctx, ds, params)
	ctx = logger.WithRunID(ctx, result.RunID)

	// Persist even when the caller has gone away.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.Recorder.SaveRun(saveCtx, result); err != nil {
		s.log.Errorf(ctx, "record run: %v", err)
	}
	if s.Telemetry != nil {
		if err := s.Telemetry.Append(optimizer.TelemetryFrom(result)); err != nil {
			s.log.Errorf(ctx, "append telemetry: %v", err)
		}
	}
	s.last = result
	return result
}

// priorForecasts returns the forecasts of the previous run so this run can
// score them against what actually sold. Callers hold s.mu.
func (s *Service) priorForecasts(ctx context.Context) []model.ForecastResult {
	prev, err := s.lastRun(ctx, s.last)
	if err != nil {
		if !errors.Is(err, recorder.ErrNotFound) {
			s.log.Warnf(ctx, "load previous forecasts: %v", err)
		}
		return nil
	}
	return prev.Forecasts.All()
}

// LastRun returns the most recent run, from memory or the recorder.
func (s *Service) LastRun(ctx context.Context) (*model.RunResult, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	return s.lastRun(ctx, last)
}

func (s *Service) lastRun(ctx context.Context, last *model.RunResult) (*model.RunResult, error) {
	if last != nil {
		return last, nil
	}
	runs, err := s.Recorder.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, recorder.ErrNotFound
	}
	return s.Recorder.LoadRun(ctx, runs[0].RunID)
}

// Run returns a run by id.
func (s *Service) Run(ctx context.Context, id string) (*model.RunResult, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil && last.RunID == id {
		return last, nil
	}
	return s.Recorder.LoadRun(ctx, id)
}

// History lists persisted runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]recorder.RunSummary, error) {
	return s.Recorder.ListRuns(ctx, limit)
}

// Health reports the health of every worker.
func (s *Service) Health() []worker.HealthReport {
	return s.Coordinator.Health()
}

// AnomalyStats summarizes the anomalies retained across runs.
func (s *Service) AnomalyStats() anomaly.HistoryStats {
	if s.Anomalies == nil {
		return anomaly.HistoryStats{Trend: anomaly.TrendStable}
	}
	return s.Anomalies.Stats(s.Clock())
}

// Optimize runs the performance optimizer over the retained telemetry.
func (s *Service) Optimize(ctx context.Context) (optimizer.Report, error) {
	if s.Telemetry == nil {
		return optimizer.Report{}, ErrNoTelemetry
	}
	runs := s.Telemetry.Runs()
	rep := optimizer.Analyze(runs, s.Targets, s.Clock())
	s.log.Infof(ctx, "optimizer analysed %d runs: %d recommendations", len(runs), len(rep.Recommendations))
	return rep, nil
}

// Close releases the recorder.
func (s *Service) Close() error {
	if err := s.Recorder.Close(); err != nil {
		return fmt.Errorf("close recorder: %w", err)
	}
	return nil
}
