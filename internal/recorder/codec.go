package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"DemandSentinel/internal/model"
)

// SchemaVersion is the FlatRecord layout written by Encode.
const SchemaVersion = 1

// ErrUnsupportedSchema is returned when decoding a record of another version.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// FlatRecord is the storage form of a RunResult. Scalar identity fields
// are columns; everything else is JSON keyed by field name.
type FlatRecord struct {
	SchemaVersion int               `json:"schema_version"`
	RunID         string            `json:"run_id"`
	Status        string            `json:"status"`
	StartedAt     string            `json:"started_at"`
	FinishedAt    string            `json:"finished_at"`
	Fields        map[string]string `json:"fields"`
}

const (
	fieldFailedStage     = "failed_stage"
	fieldError           = "error"
	fieldSummary         = "execution_summary"
	fieldParams          = "params"
	fieldPatterns        = "demand_patterns"
	fieldSegments        = "segments"
	fieldForecasts       = "forecasts"
	fieldOptimization    = "optimization_results"
	fieldAnomalies       = "anomalies"
	fieldAlerts          = "alerts"
	fieldRecommendations = "recommendations"
	fieldKPIs            = "kpis"
	fieldMarketContext   = "market_context"
	fieldStages          = "stages"
)

// Encode flattens a run result.
func Encode(r *model.RunResult) (FlatRecord, error) {
	rec := FlatRecord{
		SchemaVersion: SchemaVersion,
		RunID:         r.RunID,
		Status:        string(r.Status),
		StartedAt:     r.StartedAt.Format(time.RFC3339Nano),
		FinishedAt:    r.FinishedAt.Format(time.RFC3339Nano),
		Fields: map[string]string{
			fieldFailedStage: string(r.FailedStage),
			fieldError:       r.Error,
			fieldSummary:     r.ExecutionSummary,
		},
	}
	encoded := []struct {
		key string
		v   interface{}
	}{
		{fieldParams, r.Params},
		{fieldPatterns, r.DemandPatterns},
		{fieldSegments, r.Segments},
		{fieldForecasts, r.Forecasts},
		{fieldOptimization, r.Optimization},
		{fieldAnomalies, r.Anomalies},
		{fieldAlerts, r.Alerts},
		{fieldRecommendations, r.Recommendations},
		{fieldKPIs, r.KPIs},
		{fieldMarketContext, r.MarketContext},
		{fieldStages, r.Stages},
	}
	for _, e := range encoded {
		data, err := json.Marshal(e.v)
		if err != nil {
			return FlatRecord{}, fmt.Errorf("encode %s: %w", e.key, err)
		}
		rec.Fields[e.key] = string(data)
	}
	return rec, nil
}

// Decode rebuilds a run result from its flat form.
func Decode(rec FlatRecord) (*model.RunResult, error) {
	if rec.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, rec.SchemaVersion)
	}
	started, err := time.Parse(time.RFC3339Nano, rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("decode started_at: %w", err)
	}
	finished, err := time.Parse(time.RFC3339Nano, rec.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("decode finished_at: %w", err)
	}

	r := &model.RunResult{
		RunID:            rec.RunID,
		Status:           model.RunStatus(rec.Status),
		StartedAt:        started,
		FinishedAt:       finished,
		FailedStage:      model.Stage(rec.Fields[fieldFailedStage]),
		Error:            rec.Fields[fieldError],
		ExecutionSummary: rec.Fields[fieldSummary],
	}
	decoded := []struct {
		key string
		v   interface{}
	}{
		{fieldParams, &r.Params},
		{fieldPatterns, &r.DemandPatterns},
		{fieldSegments, &r.Segments},
		{fieldForecasts, &r.Forecasts},
		{fieldOptimization, &r.Optimization},
		{fieldAnomalies, &r.Anomalies},
		{fieldAlerts, &r.Alerts},
		{fieldRecommendations, &r.Recommendations},
		{fieldKPIs, &r.KPIs},
		{fieldMarketContext, &r.MarketContext},
		{fieldStages, &r.Stages},
	}
	for _, d := range decoded {
		raw, ok := rec.Fields[d.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), d.v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.key, err)
		}
	}
	return r, nil
}
