package worker

import (
	"context"
	"fmt"
	"time"

	"DemandSentinel/internal/calculator"
	"DemandSentinel/internal/fanout"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// OptimizeWorker computes EOQ, safety stock and reorder points.
type OptimizeWorker struct {
	log logger.Logger
}

func NewOptimizeWorker(log logger.Logger) *OptimizeWorker {
	return &OptimizeWorker{log: log}
}

func (w *OptimizeWorker) ID() string                 { return OptimizeID }
func (w *OptimizeWorker) Stage() model.Stage         { return model.StageOptimization }
func (w *OptimizeWorker) Dependencies() []Dependency { return []Dependency{demandPatterns} }

type optimizeOutcome struct {
	result model.OptimizationResult
	err    error
}

func (w *OptimizeWorker) Run(ctx context.Context, in Input, snap model.PipelineState) Result {
	start := time.Now()
	byEntity := snap.RawInputs.SalesByEntity()
	keys := make([]string, 0, len(snap.DemandPatterns))
	for _, p := range snap.DemandPatterns {
		keys = append(keys, p.EntityID)
	}

	var meter poolMeter
	outcomes, err := fanout.Map(ctx, in.Params.ConcurrencyLimit, keys, func(ctx context.Context, id string) ([]optimizeOutcome, error) {
		var o optimizeOutcome
		meter.track(func() {
			inv, _ := snap.RawInputs.InventoryFor(id)
			o.result, o.err = OptimizeEntity(id, byEntity[id], inv, in)
		})
		return []optimizeOutcome{o}, nil
	}, func(a, b optimizeOutcome) bool { return a.result.EntityID < b.result.EntityID })
	if err != nil {
		return failed(w.ID(), start, fmt.Errorf("optimization: %w", err))
	}

	var (
		results  []model.OptimizationResult
		warnings []string
	)
	for _, o := range outcomes {
		if o.err != nil {
			warnings = append(warnings, o.err.Error())
			continue
		}
		results = append(results, o.result)
	}
	if len(results) == 0 && len(outcomes) > 0 {
		return failed(w.ID(), start, fmt.Errorf("optimization: no entity could be optimized: %s", warnings[0]))
	}

	confidence := 0.0
	if len(outcomes) > 0 {
		confidence = 0.9 * float64(len(results)) / float64(len(outcomes))
	}
	elapsed := time.Since(start)
	w.log.Debugf(ctx, "optimized %d of %d entities", len(results), len(outcomes))
	return Result{
		WorkerID:      w.ID(),
		ExecutionTime: elapsed,
		Success:       true,
		Confidence:    confidence,
		Output:        model.StateUpdate{Optimization: results},
		Warnings:      warnings,
		Metrics: model.StageMetrics{
			Accuracy:      confidence,
			Throughput:    throughput(len(results), elapsed),
			ResourceUsage: meter.utilization(elapsed, in.Params.ConcurrencyLimit),
		},
	}
}

// UnitCost resolves an entity's unit cost: the snapshot value, else average
// realised price, else 1.
func UnitCost(records []model.SalesRecord, inv model.InventorySnapshot) float64 {
	if inv.UnitCost != nil && *inv.UnitCost > 0 {
		return *inv.UnitCost
	}
	var qty, revenue float64
	for _, r := range records {
		qty += r.Quantity
		revenue += r.Revenue
	}
	if qty > 0 && revenue > 0 {
		return revenue / qty
	}
	return 1
}

// OptimizeEntity applies the stock policy to one entity's demand baseline.
func OptimizeEntity(id string, records []model.SalesRecord, inv model.InventorySnapshot, in Input) (model.OptimizationResult, error) {
	policy := in.Params.Stock
	b := calculator.ComputeBaseline(id, records, calculator.BaselineOptions{End: in.Now, WindowDays: in.Params.BaselineWindowDays})

	unitCost := UnitCost(records, inv)
	annual := b.Mean * 365
	eoq, err := calculator.CalculateEOQ(annual, policy.OrderingCost, unitCost*policy.HoldingRate)
	if err != nil {
		return model.OptimizationResult{EntityID: id}, fmt.Errorf("eoq for %s: %w", id, err)
	}

	multiplier := in.Params.Heuristics.SafetyStockMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	safety := calculator.CalculateSafetyStock(b.Mean, b.StdDev, policy.LeadTimeDays, policy.ServiceLevel) * multiplier

	frequency := 0.0
	if annual > 0 {
		frequency = 365 * eoq / annual
	}
	return model.OptimizationResult{
		EntityID:           id,
		AnnualDemand:       annual,
		EOQ:                eoq,
		SafetyStock:        safety,
		ReorderPoint:       calculator.CalculateReorderPoint(b.Mean, policy.LeadTimeDays, safety),
		OrderFrequencyDays: frequency,
		UnitCost:           unitCost,
	}, nil
}
