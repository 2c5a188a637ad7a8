package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/notifier"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

// Analyzer is the part of the service the scheduler drives.
type Analyzer interface {
	Analyze(ctx context.Context) (*model.RunResult, error)
	Optimize(ctx context.Context) (optimizer.Report, error)
	LastRun(ctx context.Context) (*model.RunResult, error)
	History(ctx context.Context, limit int) ([]recorder.RunSummary, error)
	Health() []worker.HealthReport
}

// Sender delivers operator messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

const sendRetries = 3

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Analyzer Analyzer
	Sender   Sender
	Ctx      context.Context
	log      logger.Logger
}

// NewScheduler creates a new Scheduler. sender may be nil.
func NewScheduler(ctx context.Context, a Analyzer, sender Sender, log logger.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Analyzer: a,
		Sender:   sender,
		Ctx:      ctx,
		log:      log,
	}
}

// RegisterAll registers the analysis and optimizer tasks.
func (s *Scheduler) RegisterAll(analysisCron, optimizerCron string) error {
	if _, err := s.Cron.AddFunc(analysisCron, s.analysisTask); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	if _, err := s.Cron.AddFunc(optimizerCron, s.optimizerTask); err != nil {
		return fmt.Errorf("register optimizer task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Infof(s.Ctx, "scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Infof(s.Ctx, "scheduler stopped")
}

// RunAnalysisNow executes the analysis task immediately.
func (s *Scheduler) RunAnalysisNow() {
	s.analysisTask()
}

func (s *Scheduler) analysisTask() {
	s.log.Infof(s.Ctx, "running analysis task")
	result, err := s.Analyzer.Analyze(s.Ctx)
	if err != nil {
		s.log.Errorf(s.Ctx, "analysis collect: %v", err)
		s.trySend(fmt.Sprintf("❌ Analysis failed: %v", err))
		return
	}
	s.publish(result)
}

// publish sends the digest and, separately, any critical alerts.
func (s *Scheduler) publish(result *model.RunResult) {
	s.trySend(notifier.FormatRunDigest(result))
	if msg := notifier.FormatCriticalAlerts(result.Alerts); msg != "" {
		s.trySend(msg)
	}
}

func (s *Scheduler) optimizerTask() {
	s.log.Infof(s.Ctx, "running optimizer task")
	rep, err := s.Analyzer.Optimize(s.Ctx)
	if err != nil {
		s.log.Errorf(s.Ctx, "optimizer: %v", err)
		return
	}
	s.trySend(notifier.FormatOptimizerReport(rep))
}

const helpText = "Available commands:\n• /run - analyse now\n• /last - last run digest\n• /history - recent runs\n• /health - worker health\n• /optimize - tuning report"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Commands may arrive as /cmd@BotName.
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch cmd {
	case "/run":
		result, err := s.Analyzer.Analyze(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Analysis failed: %v", err)
		}
		if msg := notifier.FormatCriticalAlerts(result.Alerts); msg != "" {
			s.trySend(msg)
		}
		return notifier.FormatRunDigest(result)
	case "/last":
		result, err := s.Analyzer.LastRun(ctx)
		if errors.Is(err, recorder.ErrNotFound) {
			return "No runs recorded."
		}
		if err != nil {
			return fmt.Sprintf("❌ Load last run: %v", err)
		}
		return notifier.FormatRunDigest(result)
	case "/history":
		runs, err := s.Analyzer.History(ctx, 10)
		if err != nil {
			return fmt.Sprintf("❌ Load history: %v", err)
		}
		return notifier.FormatRunList(runs)
	case "/health":
		return notifier.FormatHealth(s.Analyzer.Health())
	case "/optimize":
		rep, err := s.Analyzer.Optimize(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Optimizer: %v", err)
		}
		return notifier.FormatOptimizerReport(rep)
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Sender == nil {
		return
	}
	if err := s.Sender.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.log.Errorf(s.Ctx, "send notification: %v", err)
	}
}
