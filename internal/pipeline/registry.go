package pipeline

import (
	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/worker"
)

// Registry returns the workers in pipeline order. A nil analyzer leaves
// context enrichment unmet on every run.
func Registry(engine *anomaly.Engine, analyzer worker.MarketAnalyzer, log logger.Logger) []worker.Worker {
	return []worker.Worker{
		worker.NewPatternWorker(log),
		worker.NewForecastWorker(log),
		worker.NewOptimizeWorker(log),
		worker.NewAnomalyWorker(engine, log),
		worker.NewEnrichWorker(analyzer, log),
	}
}
