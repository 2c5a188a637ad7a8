package worker

import (
	"context"
	"fmt"
	"time"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// MarketAnalyzer produces market context for a set of demand patterns.
type MarketAnalyzer interface {
	Analyze(ctx context.Context, patterns []model.DemandPattern) (*model.MarketContext, error)
}

// EnrichWorker adds external market context to the run.
type EnrichWorker struct {
	analyzer MarketAnalyzer
	log      logger.Logger
}

// NewEnrichWorker creates the worker. A nil analyzer leaves the stage
// permanently unmet.
func NewEnrichWorker(analyzer MarketAnalyzer, log logger.Logger) *EnrichWorker {
	return &EnrichWorker{analyzer: analyzer, log: log}
}

func (w *EnrichWorker) ID() string         { return EnrichID }
func (w *EnrichWorker) Stage() model.Stage { return model.StageContextEnrichment }

func (w *EnrichWorker) Dependencies() []Dependency {
	configured := w.analyzer != nil
	return []Dependency{
		demandPatterns,
		{Name: "enrichment endpoint configured", Check: func(*model.PipelineState) bool { return configured }},
	}
}

func (w *EnrichWorker) Run(ctx context.Context, in Input, snap model.PipelineState) Result {
	start := time.Now()
	mc, err := w.analyzer.Analyze(ctx, snap.DemandPatterns)
	if err != nil {
		return failed(w.ID(), start, fmt.Errorf("context enrichment: %w", err))
	}

	highConfidence := 0
	for _, i := range mc.Insights {
		if i.ConfidenceScore > 0.7 {
			highConfidence++
		}
	}
	accuracy := 0.8
	if len(mc.Insights) > 0 {
		accuracy = float64(highConfidence) / float64(len(mc.Insights))
	}

	elapsed := time.Since(start)
	w.log.Debugf(ctx, "market context: %s (cached=%t)", mc.Summary, mc.Cached)
	return Result{
		WorkerID:      w.ID(),
		ExecutionTime: elapsed,
		Success:       true,
		Confidence:    mc.Confidence,
		Output:        model.StateUpdate{MarketContext: mc},
		Metrics: model.StageMetrics{
			Accuracy:   accuracy,
			Throughput: throughput(len(mc.Insights), elapsed),
		},
	}
}
