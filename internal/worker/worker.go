// Package worker defines the stage worker contract and its implementations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"DemandSentinel/internal/model"
)

// ErrDependencyUnmet is returned when a worker's preconditions do not hold.
var ErrDependencyUnmet = errors.New("dependency unmet")

// Input is the per-run context handed to every worker.
type Input struct {
	RunID  string
	Now    time.Time
	Params model.RunParams
}

// Result is what a worker returns for one invocation.
type Result struct {
	WorkerID      string
	ExecutionTime time.Duration
	Success       bool
	Confidence    float64
	Output        model.StateUpdate
	Err           error
	Metrics       model.StageMetrics
	Warnings      []string
}

// Dependency is a named precondition checked before a worker runs.
type Dependency struct {
	Name  string
	Check func(s *model.PipelineState) bool
}

// Worker is one pipeline stage.
type Worker interface {
	ID() string
	Stage() model.Stage
	Dependencies() []Dependency
	Run(ctx context.Context, in Input, snapshot model.PipelineState) Result
}

// CheckDependencies returns ErrDependencyUnmet naming every failed check.
func CheckDependencies(w Worker, s *model.PipelineState) error {
	var unmet []string
	for _, d := range w.Dependencies() {
		if d.Check == nil || !d.Check(s) {
			unmet = append(unmet, d.Name)
		}
	}
	if len(unmet) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDependencyUnmet, strings.Join(unmet, ", "))
}

var (
	salesHistory = Dependency{
		Name:  "sales_history non-empty",
		Check: func(s *model.PipelineState) bool { return len(s.RawInputs.Sales) > 0 },
	}
	demandPatterns = Dependency{
		Name:  "demand_patterns non-empty",
		Check: func(s *model.PipelineState) bool { return len(s.DemandPatterns) > 0 },
	}
)

func failed(id string, start time.Time, err error) Result {
	return Result{WorkerID: id, ExecutionTime: time.Since(start), Err: err}
}

// poolMeter accumulates the busy time of fan-out calls.
type poolMeter struct {
	busy atomic.Int64
}

func (m *poolMeter) track(fn func()) {
	start := time.Now()
	fn()
	m.busy.Add(int64(time.Since(start)))
}

// utilization is the busy share of limit slots over elapsed, in percent.
func (m *poolMeter) utilization(elapsed time.Duration, limit int) float64 {
	if elapsed <= 0 || limit <= 0 {
		return 0
	}
	u := float64(m.busy.Load()) / (float64(elapsed) * float64(limit)) * 100
	if u > 100 {
		return 100
	}
	return u
}

func throughput(items int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return float64(items)
	}
	return float64(items) / elapsed.Seconds()
}
