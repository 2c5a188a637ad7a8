package collector

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"DemandSentinel/internal/model"
)

// FileSource reads a directory holding sales.csv and inventory.csv (or
// sales.json and inventory.json) plus an optional supplier_alerts.json.
type FileSource struct {
	Dir string
	// Now anchors the days window; nil uses time.Now.
	Now func() time.Time
}

// NewFileSource creates a source over dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir, Now: time.Now}
}

func (s *FileSource) Name() string { return "file:" + s.Dir }

func (s *FileSource) FetchSales(_ context.Context, days int) ([]model.SalesRecord, error) {
	var records []model.SalesRecord
	if err := load(s.Dir, "sales", parseSalesCSV, &records); err != nil {
		return nil, err
	}
	if days <= 0 {
		return records, nil
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	from := now.AddDate(0, 0, -days)
	out := records[:0]
	for _, r := range records {
		if !r.Timestamp.Before(from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileSource) FetchInventory(context.Context) ([]model.InventorySnapshot, error) {
	var out []model.InventorySnapshot
	if err := load(s.Dir, "inventory", parseInventoryCSV, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileSource) FetchSupplierAlerts(context.Context) ([]model.SupplierAlert, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, "supplier_alerts.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode supplier_alerts.json: %w", err)
	}
	return decodeSupplierAlerts(raw)
}

// load prefers name.csv and falls back to name.json.
func load[T any](dir, name string, parseCSV func(io.Reader) ([]T, error), out *[]T) error {
	csvPath := filepath.Join(dir, name+".csv")
	f, err := os.Open(csvPath)
	if err == nil {
		defer f.Close()
		rows, err := parseCSV(f)
		if err != nil {
			return fmt.Errorf("parse %s: %w", csvPath, err)
		}
		*out = rows
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	jsonPath := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("no %s.csv or %s.json in %s: %w", name, name, dir, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", jsonPath, err)
	}
	return nil
}

// readCSV returns the rows keyed by the lower-cased header names.
func readCSV(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	for _, col := range required {
		found := false
		for _, h := range header {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []map[string]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func parseFloat(row map[string]string, col string) (float64, error) {
	v, err := strconv.ParseFloat(row[col], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return v, nil
}

func optionalFloat(row map[string]string, col string) (*float64, error) {
	if row[col] == "" {
		return nil, nil
	}
	v, err := parseFloat(row, col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseSalesCSV(r io.Reader) ([]model.SalesRecord, error) {
	rows, err := readCSV(r, "entity_id", "timestamp", "quantity")
	if err != nil {
		return nil, err
	}
	out := make([]model.SalesRecord, 0, len(rows))
	for i, row := range rows {
		ts, err := parseTimestamp(row["timestamp"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		qty, err := parseFloat(row, "quantity")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rec := model.SalesRecord{EntityID: row["entity_id"], Timestamp: ts, Quantity: qty}
		if row["revenue"] != "" {
			if rec.Revenue, err = parseFloat(row, "revenue"); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseInventoryCSV(r io.Reader) ([]model.InventorySnapshot, error) {
	rows, err := readCSV(r, "entity_id", "available_quantity")
	if err != nil {
		return nil, err
	}
	out := make([]model.InventorySnapshot, 0, len(rows))
	for i, row := range rows {
		qty, err := parseFloat(row, "available_quantity")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		snap := model.InventorySnapshot{EntityID: row["entity_id"], AvailableQuantity: qty}
		if snap.ReorderPoint, err = optionalFloat(row, "reorder_point"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if snap.UnitCost, err = optionalFloat(row, "unit_cost"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, snap)
	}
	return out, nil
}
