package scheduler

import (
	"context"
	"errors"
	"sync"
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

type fakeAnalyzer struct {
	result     *model.RunResult
	analyzeErr error
	last       *model.RunResult
	analyzed   int
}

func (f *fakeAnalyzer) Analyze(context.Context) (*model.RunResult, error) {
	f.analyzed++
	return f.result, f.analyzeErr
}

func (f *fakeAnalyzer) Optimize(context.Context) (optimizer.Report, error) {
	return optimizer.Report{Runs: 4, Confidence: 0.8}, nil
}

func (f *fakeAnalyzer) LastRun(context.Context) (*model.RunResult, error) {
	if f.last == nil {
		return nil, recorder.ErrNotFound
	}
	return f.last, nil
}

func (f *fakeAnalyzer) History(context.Context, int) ([]recorder.RunSummary, error) {
	return []recorder.RunSummary{{RunID: "run-0001", Status: model.RunDone}}, nil
}

func (f *fakeAnalyzer) Health() []worker.HealthReport {
	return []worker.HealthReport{{WorkerID: "pattern", Status: worker.StatusHealthy}}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func criticalRun() *model.RunResult {
	now := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)
	return &model.RunResult{
		RunID: "run-critical", Status: model.RunDone, StartedAt: now, FinishedAt: now.Add(time.Second),
		Alerts: []model.Alert{{Type: model.AlertStockoutRisk, Severity: model.SeverityCritical, EntityID: "SKU-1", Message: "stock out in 1.5 days"}},
	}
}

func newTestScheduler(a Analyzer, s Sender) *Scheduler {
	return NewScheduler(context.Background(), a, s, logger.NewNop())
}

func TestAnalysisTask_SendsDigestAndCriticalAlerts(t *testing.T) {
	sender := &recordingSender{}
	sched := newTestScheduler(&fakeAnalyzer{result: criticalRun()}, sender)
	sched.RunAnalysisNow()

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0], "run-crit")
	assert.Contains(t, sender.sent[1], "1 critical alerts")
}

func TestAnalysisTask_ReportsFailure(t *testing.T) {
	sender := &recordingSender{}
	sched := newTestScheduler(&fakeAnalyzer{analyzeErr: errors.New("source down")}, sender)
	sched.RunAnalysisNow()

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "source down")
}

func TestAnalysisTask_NilSender(t *testing.T) {
	a := &fakeAnalyzer{result: criticalRun()}
	newTestScheduler(a, nil).RunAnalysisNow()
	assert.Equal(t, 1, a.analyzed)
}

func TestOptimizerTask(t *testing.T) {
	sender := &recordingSender{}
	newTestScheduler(&fakeAnalyzer{}, sender).optimizerTask()
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "Runs analysed: 4")
}

func TestRegisterAll(t *testing.T) {
	sched := newTestScheduler(&fakeAnalyzer{}, nil)
	require.NoError(t, sched.RegisterAll("0 0 6 * * *", "0 30 6 * * 1"))
	assert.Len(t, sched.Cron.Entries(), 2)

	assert.Error(t, newTestScheduler(&fakeAnalyzer{}, nil).RegisterAll("not a cron", "0 0 6 * * *"))
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	a := &fakeAnalyzer{result: criticalRun()}
	sched := newTestScheduler(a, sender)

	assert.Equal(t, "No runs recorded.", sched.HandleCommand(ctx, "/last"))

	reply := sched.HandleCommand(ctx, "/run@DemandSentinelBot")
	assert.Contains(t, reply, "run-crit")
	assert.Equal(t, 1, a.analyzed)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "critical alerts")

	a.last = criticalRun()
	assert.Contains(t, sched.HandleCommand(ctx, "/last"), "run-crit")
	assert.Contains(t, sched.HandleCommand(ctx, "/history"), "run-0001")
	assert.Contains(t, sched.HandleCommand(ctx, "/health"), "pattern: HEALTHY")
	assert.Contains(t, sched.HandleCommand(ctx, "/optimize"), "Optimizer report")
	assert.Equal(t, helpText, sched.HandleCommand(ctx, "hello"))
	assert.Equal(t, helpText, sched.HandleCommand(ctx, "  "))
}
