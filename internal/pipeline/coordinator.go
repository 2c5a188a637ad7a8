// Package pipeline drives the stage workers through the analysis state
// machine and synthesizes the final run result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/worker"
)

var (
	// ErrRunCancelled ends a run whose context was cancelled or hit the global timeout.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrStageTimeout marks a stage that exceeded its own budget.
	ErrStageTimeout = errors.New("stage timed out")
	// ErrWorkerPanic marks a stage whose worker panicked.
	ErrWorkerPanic = errors.New("worker panicked")
)

// DefaultGlobalTimeout bounds a whole run.
const DefaultGlobalTimeout = 60 * time.Second

const coordinatorID = "coordinator"

// Observer is notified as stages and runs finish.
type Observer interface {
	StageFinished(report model.StageReport)
	RunFinished(result *model.RunResult)
}

// Options tune a Coordinator.
type Options struct {
	GlobalTimeout time.Duration
	// Targets are keyed by worker id. Missing entries fall back to the defaults.
	Targets  map[string]worker.Targets
	Observer Observer
	Clock    func() time.Time
}

// Coordinator owns the pipeline state and the ordered worker registry.
type Coordinator struct {
	workers []worker.Worker
	targets map[string]worker.Targets
	health  map[string]*worker.HealthTracker
	opts    Options
	log     logger.Logger
}

// NewCoordinator creates a coordinator running workers in the given order.
func NewCoordinator(workers []worker.Worker, opts Options, log logger.Logger) *Coordinator {
	if opts.GlobalTimeout <= 0 {
		opts.GlobalTimeout = DefaultGlobalTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	targets := worker.DefaultTargets()
	for id, t := range opts.Targets {
		targets[id] = t
	}
	health := make(map[string]*worker.HealthTracker, len(workers))
	for _, w := range workers {
		health[w.ID()] = worker.NewHealthTracker(w.ID(), targets[w.ID()])
	}
	return &Coordinator{workers: workers, targets: targets, health: health, opts: opts, log: log}
}

// Health returns the health of every worker in registry order.
func (c *Coordinator) Health() []worker.HealthReport {
	out := make([]worker.HealthReport, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, c.health[w.ID()].Report())
	}
	return out
}

type stageOutcome struct {
	report model.StageReport
	update model.StateUpdate
	// fatal is set when the run must stop at this stage.
	fatal error
}

// Run executes one full analysis. It always returns a result in a terminal state.
func (c *Coordinator) Run(ctx context.Context, dataset model.Dataset, params model.RunParams) *model.RunResult {
	runID := uuid.New().String()
	startedAt := c.opts.Clock()
	ctx = logger.WithRunID(ctx, runID)
	runCtx, cancel := context.WithTimeout(ctx, c.opts.GlobalTimeout)
	defer cancel()

	state := model.PipelineState{RawInputs: dataset, Now: startedAt}
	in := worker.Input{RunID: runID, Now: startedAt, Params: params}
	result := &model.RunResult{RunID: runID, StartedAt: startedAt, Params: params}

	c.log.Infof(ctx, "run started: %d sales records, %d inventory snapshots", len(dataset.Sales), len(dataset.Inventory))

	for _, w := range c.workers {
		if err := runCtx.Err(); err != nil {
			c.fail(ctx, result, w.Stage(), fmt.Errorf("%w before %s: %v", ErrRunCancelled, w.Stage(), err))
			return c.finish(ctx, result, &state)
		}

		out := c.runStage(runCtx, w, in, &state)
		result.Stages = append(result.Stages, out.report)
		c.observeStage(out.report)

		if out.fatal != nil {
			c.fail(ctx, result, w.Stage(), out.fatal)
			return c.finish(ctx, result, &state)
		}
		if out.report.Success {
			state.Apply(out.update)
		}
	}

	if err := runCtx.Err(); err != nil {
		c.fail(ctx, result, model.StageSynthesis, fmt.Errorf("%w before %s: %v", ErrRunCancelled, model.StageSynthesis, err))
		return c.finish(ctx, result, &state)
	}

	synthStart := time.Now()
	c.synthesize(&state, result.Stages, params.Heuristics)
	synth := model.StageReport{
		Stage:      model.StageSynthesis,
		WorkerID:   coordinatorID,
		Success:    true,
		Confidence: 1,
		Duration:   time.Since(synthStart),
	}
	result.Stages = append(result.Stages, synth)
	c.observeStage(synth)

	result.Status = model.RunDone
	return c.finish(ctx, result, &state)
}

// runStage evaluates dependencies, then runs the worker under its own
// budget. Panics are recovered into a fatal outcome.
func (c *Coordinator) runStage(runCtx context.Context, w worker.Worker, in worker.Input, state *model.PipelineState) stageOutcome {
	stageLog := logger.WithStage(runCtx, string(w.Stage()))
	report := model.StageReport{Stage: w.Stage(), WorkerID: w.ID()}

	if err := worker.CheckDependencies(w, state); err != nil {
		report.Skipped = true
		report.Error = err.Error()
		c.log.Warnf(stageLog, "stage skipped: %v", err)
		return stageOutcome{report: report}
	}

	budget := c.targets[w.ID()].MaxExecutionTime
	if budget <= 0 {
		budget = c.opts.GlobalTimeout
	}
	stageCtx, cancel := context.WithTimeout(stageLog, budget)
	defer cancel()

	snapshot := state.Snapshot()
	done := make(chan worker.Result, 1)
	panicked := make(chan string, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				panicked <- fmt.Sprintf("%v\n%s", r, debug.Stack())
			}
		}()
		done <- w.Run(stageCtx, in, snapshot)
	}()

	var res worker.Result
	select {
	case res = <-done:
	case msg := <-panicked:
		report.Duration = time.Since(start)
		report.Error = fmt.Sprintf("%v: %s", ErrWorkerPanic, firstLine(msg))
		c.log.Errorf(stageLog, "worker panicked: %s", msg)
		c.health[w.ID()].Record(false, 0, report.Duration)
		return stageOutcome{report: report, fatal: fmt.Errorf("%w in %s: %s", ErrWorkerPanic, w.Stage(), firstLine(msg))}
	case <-stageCtx.Done():
		res = worker.Result{WorkerID: w.ID(), Err: stageCtx.Err()}
	}
	report.Duration = time.Since(start)

	if runCtx.Err() != nil {
		report.Error = fmt.Sprintf("%v: %v", ErrRunCancelled, runCtx.Err())
		return stageOutcome{report: report, fatal: fmt.Errorf("%w during %s: %v", ErrRunCancelled, w.Stage(), runCtx.Err())}
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && (!res.Success || res.Err != nil) {
		res.Success = false
		res.Err = fmt.Errorf("%w after %s", ErrStageTimeout, budget)
	}

	report.Success = res.Success && res.Err == nil
	if report.Success {
		report.Confidence = res.Confidence
	} else if res.Err != nil {
		report.Error = res.Err.Error()
	}
	report.Metrics = res.Metrics
	report.Metrics.MemoryUsage = heapUsage()

	c.health[w.ID()].Record(report.Success, report.Confidence, report.Duration)
	if report.Success {
		c.log.Infof(stageLog, "stage finished in %s, confidence %.2f", report.Duration, report.Confidence)
	} else {
		c.log.Warnf(stageLog, "stage failed: %s", report.Error)
	}
	return stageOutcome{report: report, update: res.Output}
}

func (c *Coordinator) synthesize(state *model.PipelineState, stages []model.StageReport, h model.Heuristics) {
	recs := Recommendations(state)
	alerts := append(state.Alerts, CoordinatorAlerts(state, c.Health(), h)...)
	SortAlerts(alerts)
	state.Recommendations = append(state.Recommendations, recs...)
	SortRecommendations(state.Recommendations)
	state.Alerts = alerts
	state.KPIs = ComputeKPIs(state, stages)
}

func (c *Coordinator) fail(ctx context.Context, result *model.RunResult, stage model.Stage, err error) {
	result.Status = model.RunFailed
	result.FailedStage = stage
	result.Error = err.Error()
	c.log.Errorf(ctx, "run failed at %s: %v", stage, err)
}

func (c *Coordinator) finish(ctx context.Context, result *model.RunResult, state *model.PipelineState) *model.RunResult {
	result.FinishedAt = c.opts.Clock()
	result.DemandPatterns = state.DemandPatterns
	result.Segments = state.Segments
	result.Forecasts = state.Forecasts
	result.Optimization = state.Optimization
	result.Anomalies = state.Anomalies
	result.Alerts = state.Alerts
	result.Recommendations = state.Recommendations
	result.KPIs = state.KPIs
	result.MarketContext = state.MarketContext
	result.ExecutionSummary = Summary(result)

	c.log.Infof(ctx, "run finished: status=%s duration=%s degraded=%v", result.Status, result.Duration(), result.DegradedStages())
	if c.opts.Observer != nil {
		c.opts.Observer.RunFinished(result)
	}
	return result
}

func (c *Coordinator) observeStage(r model.StageReport) {
	if c.opts.Observer != nil {
		c.opts.Observer.StageFinished(r)
	}
}

func heapUsage() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapInuse) / float64(m.HeapSys) * 100
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
