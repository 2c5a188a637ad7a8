package recorder

import (
	"context"

	"DemandSentinel/internal/model"
)

// NoopRecorder is used when no history database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SaveRun(context.Context, *model.RunResult) error { return nil }
func (n *NoopRecorder) LoadRun(context.Context, string) (*model.RunResult, error) {
	return nil, ErrNotFound
}
func (n *NoopRecorder) ListRuns(context.Context, int) ([]RunSummary, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                        { return nil }
