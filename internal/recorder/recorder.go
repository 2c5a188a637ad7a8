package recorder

import (
	"context"
	"errors"
	"time"

	"DemandSentinel/internal/model"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID             string          `json:"run_id"`
	Status            model.RunStatus `json:"status"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	FailedStage       model.Stage     `json:"failed_stage,omitempty"`
	Anomalies         int             `json:"anomalies"`
	Alerts            int             `json:"alerts"`
	Recommendations   int             `json:"recommendations"`
	OverallConfidence float64         `json:"overall_confidence"`
}

// Summarize builds the history row of a run.
func Summarize(r *model.RunResult) RunSummary {
	return RunSummary{
		RunID:             r.RunID,
		Status:            r.Status,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		FailedStage:       r.FailedStage,
		Anomalies:         len(r.Anomalies),
		Alerts:            len(r.Alerts),
		Recommendations:   len(r.Recommendations),
		OverallConfidence: r.KPIs.AIPerformance.OverallConfidence,
	}
}

// Recorder persists run results for later review.
type Recorder interface {
	SaveRun(ctx context.Context, r *model.RunResult) error
	LoadRun(ctx context.Context, runID string) (*model.RunResult, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}
