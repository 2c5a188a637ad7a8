package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// DefaultHistoryDays is how much sales history a run asks for.
const DefaultHistoryDays = 365

// Collector assembles a Dataset from a Source.
type Collector struct {
	Source Source
	Days   int
	log    logger.Logger
}

// NewCollector creates a new Collector. days <= 0 uses DefaultHistoryDays.
func NewCollector(source Source, days int, log logger.Logger) *Collector {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	return &Collector{Source: source, Days: days, log: log}
}

// Collect fetches everything a run needs. Sales and inventory are
// required; supplier alerts are best effort.
func (c *Collector) Collect(ctx context.Context) (model.Dataset, error) {
	sales, err := c.Source.FetchSales(ctx, c.Days)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("collect sales from %s: %w", c.Source.Name(), err)
	}
	inventory, err := c.Source.FetchInventory(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("collect inventory from %s: %w", c.Source.Name(), err)
	}
	alerts, err := c.Source.FetchSupplierAlerts(ctx)
	if err != nil {
		c.log.Warnf(ctx, "supplier alerts from %s: %v", c.Source.Name(), err)
	}

	ds := model.Dataset{
		Sales:          cleanSales(ctx, c.log, sales),
		Inventory:      inventory,
		SupplierAlerts: alerts,
	}
	c.log.Infof(ctx, "collected %d sales records, %d inventory snapshots, %d supplier alerts from %s",
		len(ds.Sales), len(ds.Inventory), len(ds.SupplierAlerts), c.Source.Name())
	return ds, nil
}

// cleanSales drops records without an entity or with negative quantities
// and orders the rest chronologically.
func cleanSales(ctx context.Context, log logger.Logger, in []model.SalesRecord) []model.SalesRecord {
	out := make([]model.SalesRecord, 0, len(in))
	dropped := 0
	for _, r := range in {
		if r.EntityID == "" || r.Quantity < 0 || r.Timestamp.IsZero() {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		log.Warnf(ctx, "dropped %d malformed sales records", dropped)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// decodeSupplierAlerts validates each raw alert against the supplier alert
// schema. Valid alerts are returned even when others are rejected.
func decodeSupplierAlerts(raw []json.RawMessage) ([]model.SupplierAlert, error) {
	var out []model.SupplierAlert
	var errs []error
	for i, doc := range raw {
		if err := anomaly.ValidateSupplierAlertJSON(gojsonschema.NewBytesLoader(doc)); err != nil {
			errs = append(errs, fmt.Errorf("supplier alert %d: %w", i, err))
			continue
		}
		var a model.SupplierAlert
		if err := json.Unmarshal(doc, &a); err != nil {
			errs = append(errs, fmt.Errorf("supplier alert %d: %w", i, err))
			continue
		}
		out = append(out, a)
	}
	return out, errors.Join(errs...)
}
