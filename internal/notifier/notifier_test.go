package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", logger.NewNop())
	n.APIBase = url
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 2))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "x", 0)
	assert.ErrorContains(t, err, "all 1 retries exhausted")
	assert.ErrorContains(t, err, "status 403")
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan string, 1)
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /health "}}]}`))
				return
			}
			assert.Equal(t, "8", r.URL.Query().Get("offset"))
			<-r.Context().Done()
		case "/botTOKEN/sendMessage":
			var p map[string]string
			_ = json.NewDecoder(r.Body).Decode(&p)
			replies <- p["text"]
		}
	}))
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		newTestNotifier(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
			return "got " + cmd
		})
		close(done)
	}()

	select {
	case reply := <-replies:
		assert.Equal(t, "got /health", reply)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
}

func digestRun() *model.RunResult {
	start := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)
	return &model.RunResult{
		RunID:      "0123456789abcdef",
		Status:     model.RunDone,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Alerts: []model.Alert{
			{Type: model.AlertStockoutRisk, Severity: model.SeverityCritical, EntityID: "SKU-1", Message: "stock < 7 days", RecommendedAction: "order 140 units"},
			{Type: model.AlertOverstock, Severity: model.SeverityMedium, EntityID: "SKU-2", Message: "8 months of stock"},
		},
		Recommendations: []model.Recommendation{{Priority: model.PriorityHigh, EntityID: "SKU-1", Action: "order 140 units"}},
		Stages: []model.StageReport{
			{Stage: model.StagePatternAnalysis, Success: true},
			{Stage: model.StageContextEnrichment, Skipped: true},
		},
	}
}

func TestFormatRunDigest(t *testing.T) {
	msg := FormatRunDigest(digestRun())
	assert.Contains(t, msg, "01234567")
	assert.Contains(t, msg, "Status: DONE (1.5s)")
	assert.Contains(t, msg, "Degraded: CONTEXT_ENRICHMENT")
	assert.Contains(t, msg, "STOCKOUT_RISK SKU-1: stock &lt; 7 days")
	assert.Contains(t, msg, "[HIGH] SKU-1: order 140 units")

	failed := digestRun()
	failed.Status = model.RunFailed
	failed.FailedStage = model.StageForecasting
	failed.Error = "run cancelled"
	assert.Contains(t, FormatRunDigest(failed), "Failed at FORECASTING: run cancelled")
}

func TestFormatCriticalAlerts(t *testing.T) {
	msg := FormatCriticalAlerts(digestRun().Alerts)
	assert.Contains(t, msg, "1 critical alerts")
	assert.Contains(t, msg, "→ order 140 units")
	assert.NotContains(t, msg, "SKU-2")

	assert.Empty(t, FormatCriticalAlerts(digestRun().Alerts[1:]))
}

func TestFormatOptimizerReport(t *testing.T) {
	rep := optimizer.Report{
		Runs:       3,
		Confidence: 0.85,
		Recommendations: []optimizer.Recommendation{{
			Component: "anomaly_threshold", Priority: model.PriorityHigh, CurrentValue: 2, RecommendedValue: 2.5,
			Expected: optimizer.Improvement{PerformanceGain: 15},
		}},
		Bottlenecks: []string{"forecast"},
	}
	msg := FormatOptimizerReport(rep)
	assert.Contains(t, msg, "Runs analysed: 3")
	assert.Contains(t, msg, "Bottlenecks: forecast")
	assert.Contains(t, msg, "[HIGH] anomaly_threshold: 2 → 2.5 (+15%)")

	assert.Contains(t, FormatOptimizerReport(optimizer.Report{}), "No tuning changes suggested.")
}

func TestFormatHealthAndRuns(t *testing.T) {
	msg := FormatHealth([]worker.HealthReport{{WorkerID: "forecast", Status: worker.StatusWarning, ErrorRate: 0.25, MeanConfidence: 0.7, Executions: 4}})
	assert.Contains(t, msg, "forecast: WARNING (errors 25%, confidence 0.70, 4 runs)")
	assert.Contains(t, FormatHealth(nil), "No executions yet.")

	runs := FormatRunList([]recorder.RunSummary{{RunID: "abcdef0123", Status: model.RunDone, StartedAt: time.Date(2024, 6, 30, 9, 5, 0, 0, time.UTC), Anomalies: 2, Alerts: 3}})
	assert.Contains(t, runs, "abcdef01 06-30 09:05 DONE: 2 anomalies, 3 alerts")
	assert.Equal(t, "No runs recorded.", FormatRunList(nil))
}
