package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
)

// SQLiteRecorder keeps run history in a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logger.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logger.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the HTTP API read while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof(context.Background(), "sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id             TEXT PRIMARY KEY,
			schema_version     INTEGER NOT NULL,
			status             TEXT NOT NULL,
			started_at         INTEGER NOT NULL,
			finished_at        INTEGER NOT NULL,
			failed_stage       TEXT,
			anomalies          INTEGER,
			alerts             INTEGER,
			recommendations    INTEGER,
			overall_confidence REAL,
			record             TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS anomalies (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			entity_id      TEXT NOT NULL,
			anomaly_type   TEXT NOT NULL,
			severity       TEXT NOT NULL,
			current_value  REAL,
			expected_value REAL,
			deviation      REAL,
			detected_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_run ON anomalies(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_entity ON anomalies(entity_id, detected_at)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id               TEXT NOT NULL,
			run_id           TEXT NOT NULL,
			type             TEXT NOT NULL,
			severity         TEXT NOT NULL,
			entity_id        TEXT,
			message          TEXT,
			financial_impact REAL,
			created_at       INTEGER NOT NULL,
			PRIMARY KEY (run_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity, created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// SaveRun stores the flat record and the queryable anomaly and alert rows.
// Saving the same run id again replaces it.
func (r *SQLiteRecorder) SaveRun(ctx context.Context, res *model.RunResult) error {
	rec, err := Encode(res)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	sum := Summarize(res)

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, schema_version, status, started_at, finished_at, failed_stage,
		 anomalies, alerts, recommendations, overall_confidence, record)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.SchemaVersion, rec.Status,
		res.StartedAt.UnixNano(), res.FinishedAt.UnixNano(), string(res.FailedStage),
		sum.Anomalies, sum.Alerts, sum.Recommendations, sum.OverallConfidence, string(data),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, table := range []string{"anomalies", "alerts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", rec.RunID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, a := range res.Anomalies {
		if _, err := tx.ExecContext(ctx, `INSERT INTO anomalies
			(run_id, entity_id, anomaly_type, severity, current_value, expected_value, deviation, detected_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			rec.RunID, a.EntityID, string(a.AnomalyType), string(a.Severity),
			a.CurrentValue, a.ExpectedValue, a.DeviationScore, a.DetectedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert anomaly: %w", err)
		}
	}
	for _, a := range res.Alerts {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO alerts
			(id, run_id, type, severity, entity_id, message, financial_impact, created_at)
			VALUES (?,?,?,?,?,?,?,?)`,
			a.ID, rec.RunID, string(a.Type), string(a.Severity), a.EntityID,
			a.Message, a.EstimatedFinancialImpact, a.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	return tx.Commit()
}

// LoadRun returns a stored run, or ErrNotFound.
func (r *SQLiteRecorder) LoadRun(ctx context.Context, runID string) (*model.RunResult, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT record FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var rec FlatRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", runID, err)
	}
	return Decode(rec)
}

// ListRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT run_id, status, started_at, finished_at, failed_stage,
		anomalies, alerts, recommendations, overall_confidence
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var status, failed string
		var started, finished int64
		if err := rows.Scan(&s.RunID, &status, &started, &finished, &failed,
			&s.Anomalies, &s.Alerts, &s.Recommendations, &s.OverallConfidence); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Status = model.RunStatus(status)
		s.FailedStage = model.Stage(failed)
		s.StartedAt = time.Unix(0, started).UTC()
		s.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountAlerts returns how many stored alerts have the given severity.
func (r *SQLiteRecorder) CountAlerts(ctx context.Context, severity model.Severity) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE severity = ?`, string(severity)).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Infof(context.Background(), "closing sqlite recorder")
	return r.db.Close()
}
