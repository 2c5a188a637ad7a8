package collector

import (
	"context"

	"DemandSentinel/internal/model"
)

// Source defines where sales, stock and supplier data come from.
type Source interface {
	FetchSales(ctx context.Context, days int) ([]model.SalesRecord, error)
	FetchInventory(ctx context.Context) ([]model.InventorySnapshot, error)
	FetchSupplierAlerts(ctx context.Context) ([]model.SupplierAlert, error)
	Name() string
}

// StaticSource serves a fixed dataset, for development and tests.
type StaticSource struct {
	Data model.Dataset
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) FetchSales(_ context.Context, _ int) ([]model.SalesRecord, error) {
	return append([]model.SalesRecord(nil), s.Data.Sales...), nil
}

func (s *StaticSource) FetchInventory(context.Context) ([]model.InventorySnapshot, error) {
	return append([]model.InventorySnapshot(nil), s.Data.Inventory...), nil
}

func (s *StaticSource) FetchSupplierAlerts(context.Context) ([]model.SupplierAlert, error) {
	return append([]model.SupplierAlert(nil), s.Data.SupplierAlerts...), nil
}
