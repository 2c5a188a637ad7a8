package model

import "time"

// SalesRecord is a single sale event for an entity.
type SalesRecord struct {
	EntityID  string    `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
	Quantity  float64   `json:"quantity"`
	Revenue   float64   `json:"revenue"`
}

// InventorySnapshot is the current stock position of an entity.
type InventorySnapshot struct {
	EntityID          string   `json:"entity_id"`
	AvailableQuantity float64  `json:"available_quantity"`
	ReorderPoint      *float64 `json:"reorder_point,omitempty"`
	UnitCost          *float64 `json:"unit_cost,omitempty"`
}

// SupplierAlert is an externally reported supply-side problem.
type SupplierAlert struct {
	EntityID      string   `json:"entity_id"`
	SupplierID    string   `json:"supplier_id"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	ObservedValue float64  `json:"observed_value"`
	ExpectedValue float64  `json:"expected_value"`
}

// Dataset bundles everything the ingestion side hands to a run.
type Dataset struct {
	Sales          []SalesRecord       `json:"sales"`
	Inventory      []InventorySnapshot `json:"inventory"`
	SupplierAlerts []SupplierAlert     `json:"supplier_alerts,omitempty"`
	// PriorForecasts are forecasts from an earlier run, scored against the
	// actuals recorded since.
	PriorForecasts []ForecastResult `json:"prior_forecasts,omitempty"`
}

// SalesByEntity groups records by entity, preserving input order.
func (d *Dataset) SalesByEntity() map[string][]SalesRecord {
	out := make(map[string][]SalesRecord)
	for _, r := range d.Sales {
		out[r.EntityID] = append(out[r.EntityID], r)
	}
	return out
}

// InventoryFor returns the snapshot for an entity.
func (d *Dataset) InventoryFor(entityID string) (InventorySnapshot, bool) {
	for _, inv := range d.Inventory {
		if inv.EntityID == entityID {
			return inv, true
		}
	}
	return InventorySnapshot{}, false
}
