package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/collector"
	"DemandSentinel/internal/config"
	"DemandSentinel/internal/enrichment"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/metrics"
	"DemandSentinel/internal/notifier"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/pipeline"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

// App is everything a command needs.
type App struct {
	Service  *Service
	Metrics  *metrics.Metrics
	Notifier *notifier.TelegramNotifier
	closers  []func() error
}

// Close releases every resource Build opened.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build wires the service from cfg. reg may be nil to skip metrics.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{}

	source, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	log.Infof(ctx, "data source: %s", source.Name())
	col := collector.NewCollector(source, cfg.Source.HistoryDays, log)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warnf(ctx, "init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, rec.Close)

	telemetry, err := optimizer.NewStore(cfg.Optimizer.StateFile, cfg.Optimizer.RecentRuns)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init telemetry store: %w", err)
	}

	var analyzer worker.MarketAnalyzer
	if cfg.Enrichment.Endpoint != "" {
		svc, closeCache := newEnrichment(ctx, cfg, log)
		if closeCache != nil {
			a.closers = append(a.closers, closeCache)
		}
		analyzer = svc
	} else {
		log.Infof(ctx, "no enrichment endpoint configured, context enrichment disabled")
	}

	opts := pipeline.Options{
		GlobalTimeout: cfg.Pipeline.GlobalTimeout,
		Targets:       cfg.StageTargets(),
	}
	if reg != nil {
		a.Metrics = metrics.New(reg)
		opts.Observer = a.Metrics
	}
	engine := anomaly.NewEngine(anomaly.NewHistory(cfg.Pipeline.HistorySize))
	coord := pipeline.NewCoordinator(pipeline.Registry(engine, analyzer, log), opts, log)

	a.Service = NewService(col, coord, rec, telemetry, cfg.RunParams(), cfg.OptimizerTargets(), log)
	a.Service.Anomalies = engine.History()

	if cfg.Telegram.BotToken != "" {
		a.Notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}
	return a, nil
}

// NewSource builds the configured data source.
func NewSource(cfg *config.Config) (collector.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		return collector.NewHTTPSource(cfg.Source.BaseURL, cfg.Source.APIKey, cfg.Proxy), nil
	case config.SourceFile:
		return collector.NewFileSource(cfg.Source.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// newEnrichment builds the enrichment service with a Redis cache when one
// is reachable, else an in-memory cache.
func newEnrichment(ctx context.Context, cfg *config.Config, log logger.Logger) (*enrichment.Service, func() error) {
	e := cfg.Enrichment
	client := enrichment.NewClient(enrichment.ClientOptions{
		Endpoint:        e.Endpoint,
		APIKey:          e.APIKey,
		Model:           e.Model,
		ProxyURL:        cfg.Proxy,
		Timeout:         e.Timeout,
		RatePerSecond:   e.RatePerSecond,
		Burst:           e.Burst,
		BreakerFailures: e.BreakerFailures,
		BreakerTimeout:  e.BreakerTimeout,
	})

	var cache enrichment.Cache = enrichment.NewMemoryCache()
	var closeCache func() error
	if cfg.Cache.RedisAddr != "" {
		rc, err := enrichment.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Warnf(ctx, "connect redis %s failed, using memory cache: %v", cfg.Cache.RedisAddr, err)
		} else {
			cache = rc
			closeCache = rc.Close
		}
	}

	profile := enrichment.Profile{
		Industry:          e.Industry,
		BusinessType:      e.BusinessType,
		ProductCategories: e.ProductCategories,
		Competitors:       e.Competitors,
		MaxQueries:        e.MaxQueries,
	}
	return enrichment.NewService(client, cache, profile, cfg.Cache.TTL, log), closeCache
}
