package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/metrics"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

type fakeBackend struct {
	runs       map[string]*model.RunResult
	lastDS     model.Dataset
	lastParams model.RunParams
	analyzeErr error
	health     []worker.HealthReport
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{runs: map[string]*model.RunResult{
		"run-1": {RunID: "run-1", Status: model.RunDone},
	}}
}

func (f *fakeBackend) Analyze(context.Context) (*model.RunResult, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &model.RunResult{RunID: "collected", Status: model.RunDone}, nil
}

func (f *fakeBackend) DefaultParams() model.RunParams { return model.DefaultRunParams() }

func (f *fakeBackend) RunDatasetWith(_ context.Context, ds model.Dataset, p model.RunParams) *model.RunResult {
	f.lastDS, f.lastParams = ds, p
	return &model.RunResult{RunID: "posted", Status: model.RunDone}
}

func (f *fakeBackend) Run(_ context.Context, id string) (*model.RunResult, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, recorder.ErrNotFound
}

func (f *fakeBackend) History(_ context.Context, limit int) ([]recorder.RunSummary, error) {
	if limit == 1 {
		return nil, nil
	}
	return []recorder.RunSummary{{RunID: "run-1", Status: model.RunDone}}, nil
}

func (f *fakeBackend) Health() []worker.HealthReport { return f.health }

func (f *fakeBackend) Optimize(context.Context) (optimizer.Report, error) {
	return optimizer.Report{Runs: 2}, nil
}

func (f *fakeBackend) AnomalyStats() anomaly.HistoryStats {
	return anomaly.HistoryStats{Total: 3, Trend: anomaly.TrendIncreasing}
}

func newTestServer(b Backend) (*httptest.Server, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return httptest.NewServer(New(b, m, reg, logger.NewNop()).Router()), m
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealth(t *testing.T) {
	b := newFakeBackend()
	b.health = []worker.HealthReport{{WorkerID: "forecast", Status: worker.StatusError}}
	srv, _ := newTestServer(b)
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, code)
	var got struct {
		Status  string                `json:"status"`
		Workers []worker.HealthReport `json:"workers"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "degraded", got.Status)
	require.Len(t, got.Workers, 1)
}

func TestRuns(t *testing.T) {
	srv, m := newTestServer(newFakeBackend())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/runs", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"run_id":"run-1"`)

	code, body = do(t, http.MethodGet, srv.URL+"/runs?limit=1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, _ = do(t, http.MethodGet, srv.URL+"/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, http.MethodGet, srv.URL+"/runs/run-1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"DONE"`)

	code, _ = do(t, http.MethodGet, srv.URL+"/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/runs/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/runs", "400")))
}

func TestAnalyze_FromSource(t *testing.T) {
	b := newFakeBackend()
	srv, _ := newTestServer(b)
	defer srv.Close()

	code, body := do(t, http.MethodPost, srv.URL+"/analyze", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"run_id":"collected"`)

	b.analyzeErr = errors.New("source unreachable")
	code, body = do(t, http.MethodPost, srv.URL+"/analyze", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, "source unreachable")
}

func TestAnalyze_PostedDataset(t *testing.T) {
	b := newFakeBackend()
	srv, _ := newTestServer(b)
	defer srv.Close()

	ts := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	body := `{"dataset":{"sales":[{"entity_id":"SKU-1","timestamp":"` + ts + `","quantity":3}],"inventory":[]},
		"params":{"anomaly_threshold":3,"sensitivity_level":"HIGH"}}`
	code, resp := do(t, http.MethodPost, srv.URL+"/analyze", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp, `"run_id":"posted"`)
	require.Len(t, b.lastDS.Sales, 1)
	assert.Equal(t, 3.0, b.lastParams.AnomalyThreshold)
	assert.Equal(t, model.SensitivityHigh, b.lastParams.SensitivityLevel)
	assert.Equal(t, 30, b.lastParams.ForecastHorizonDays)
}

func TestAnalyze_Rejects(t *testing.T) {
	srv, _ := newTestServer(newFakeBackend())
	defer srv.Close()

	tests := []struct {
		name, body, want string
	}{
		{"bad json", `{"dataset":`, "invalid JSON format"},
		{"no dataset", `{"params":{}}`, "dataset is required"},
		{"bad supplier alert", `{"dataset":{"supplier_alerts":[{"entity_id":"SKU-1","supplier_id":"S","message":"m","severity":"URGENT","observed_value":1,"expected_value":1}]}}`, "supplier_alerts[0]"},
		{"bad params", `{"dataset":{},"params":{"anomaly_threshold":-1}}`, "anomaly_threshold must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, http.MethodPost, srv.URL+"/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestOptimizeAndMetrics(t *testing.T) {
	srv, _ := newTestServer(newFakeBackend())
	defer srv.Close()

	code, body := do(t, http.MethodGet, srv.URL+"/optimize", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"runs":2`)

	code, body = do(t, http.MethodGet, srv.URL+"/anomalies/stats", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"trend":"INCREASING"`)

	code, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "sentinel_http_requests_total")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(newFakeBackend(), nil, nil, logger.NewNop()).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
