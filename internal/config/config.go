package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/worker"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

// Source kinds.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// StageTargets are the yaml form of worker.Targets.
type StageTargets struct {
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	MinAccuracy      float64       `yaml:"min_accuracy"`
	MaxErrorRate     float64       `yaml:"max_error_rate"`
}

// Config holds all application configuration.
type Config struct {
	Source struct {
		Kind        string `yaml:"kind"`
		DataDir     string `yaml:"data_dir"`
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"source"`
	Analysis struct {
		SensitivityLevel         string            `yaml:"sensitivity_level"`
		AnomalyThreshold         float64           `yaml:"anomaly_threshold"`
		TrendDetectionWindowDays int               `yaml:"trend_detection_window_days"`
		SeasonalAdjustment       *bool             `yaml:"seasonal_adjustment"`
		ForecastHorizonDays      int               `yaml:"forecast_horizon_days"`
		BaselineWindowDays       int               `yaml:"baseline_window_days"`
		Heuristics               model.Heuristics  `yaml:"heuristics"`
		Stock                    model.StockPolicy `yaml:"stock"`
	} `yaml:"analysis"`
	Pipeline struct {
		GlobalTimeout    time.Duration           `yaml:"global_timeout"`
		ConcurrencyLimit int                     `yaml:"concurrency_limit"`
		HistorySize      int                     `yaml:"history_size"`
		Stages           map[string]StageTargets `yaml:"stages"`
	} `yaml:"pipeline"`
	Enrichment struct {
		Endpoint          string        `yaml:"endpoint"`
		APIKey            string        `yaml:"api_key"`
		Model             string        `yaml:"model"`
		Timeout           time.Duration `yaml:"timeout"`
		RatePerSecond     float64       `yaml:"rate_per_second"`
		Burst             int           `yaml:"burst"`
		BreakerFailures   uint32        `yaml:"breaker_failures"`
		BreakerTimeout    time.Duration `yaml:"breaker_timeout"`
		Industry          string        `yaml:"industry"`
		BusinessType      string        `yaml:"business_type"`
		ProductCategories []string      `yaml:"product_categories"`
		Competitors       []string      `yaml:"competitors"`
		MaxQueries        int           `yaml:"max_queries"`
	} `yaml:"enrichment"`
	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		TTL           time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		AnalysisCron  string `yaml:"analysis_cron"`
		OptimizerCron string `yaml:"optimizer_cron"`
	} `yaml:"schedule"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Optimizer struct {
		StateFile            string  `yaml:"state_file"`
		RecentRuns           int     `yaml:"recent_runs"`
		AlertVolume          float64 `yaml:"alert_volume"`
		MaxFalsePositiveRate float64 `yaml:"max_false_positive_rate"`
		MaxCPUUsage          float64 `yaml:"max_cpu_usage"`
		MaxMemoryUsage       float64 `yaml:"max_memory_usage"`
		MinPatternConfidence float64 `yaml:"min_pattern_confidence"`
		MinForecastAccuracy  float64 `yaml:"min_forecast_accuracy"`
	} `yaml:"optimizer"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields a default config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Nested threshold sections start from their defaults so a file only
	// needs to name the values it changes.
	cfg.Analysis.Heuristics = model.DefaultHeuristics()
	cfg.Analysis.Stock = model.DefaultStockPolicy()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"SENTINEL_DATA_DIR", &c.Source.DataDir},
		{"SENTINEL_HTTP_BASE_URL", &c.Source.BaseURL},
		{"SENTINEL_HTTP_API_KEY", &c.Source.APIKey},
		{"LLM_ENDPOINT", &c.Enrichment.Endpoint},
		{"LLM_API_KEY", &c.Enrichment.APIKey},
		{"REDIS_ADDR", &c.Cache.RedisAddr},
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"SQLITE_PATH", &c.Database.SQLitePath},
		{"HTTPS_PROXY", &c.Proxy},
		{"LOG_LEVEL", &c.Log.Level},
		{"ANALYSIS_CRON", &c.Schedule.AnalysisCron},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
	// An HTTP base URL without an explicit kind selects the HTTP source.
	if os.Getenv("SENTINEL_HTTP_BASE_URL") != "" && c.Source.Kind == "" {
		c.Source.Kind = SourceHTTP
	}
}

func (c *Config) applyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = SourceFile
	}
	if c.Source.DataDir == "" {
		c.Source.DataDir = "data/input"
	}
	if c.Source.HistoryDays == 0 {
		c.Source.HistoryDays = 365
	}

	a := &c.Analysis
	if a.SensitivityLevel == "" {
		a.SensitivityLevel = string(model.SensitivityMedium)
	}
	a.SensitivityLevel = strings.ToUpper(a.SensitivityLevel)
	if a.AnomalyThreshold == 0 {
		a.AnomalyThreshold = 2.0
	}
	if a.TrendDetectionWindowDays == 0 {
		a.TrendDetectionWindowDays = 7
	}
	if a.SeasonalAdjustment == nil {
		on := true
		a.SeasonalAdjustment = &on
	}
	if a.ForecastHorizonDays == 0 {
		a.ForecastHorizonDays = 30
	}
	if a.BaselineWindowDays == 0 {
		a.BaselineWindowDays = 90
	}

	if c.Pipeline.GlobalTimeout == 0 {
		c.Pipeline.GlobalTimeout = 60 * time.Second
	}
	if c.Pipeline.ConcurrencyLimit == 0 {
		c.Pipeline.ConcurrencyLimit = 8
	}
	if c.Pipeline.HistorySize == 0 {
		c.Pipeline.HistorySize = 1000
	}

	e := &c.Enrichment
	if e.Model == "" {
		e.Model = "gpt-4o-mini"
	}
	if e.Timeout == 0 {
		e.Timeout = 20 * time.Second
	}
	if e.RatePerSecond == 0 {
		e.RatePerSecond = 1
	}
	if e.Burst == 0 {
		e.Burst = 2
	}
	if e.BreakerFailures == 0 {
		e.BreakerFailures = 3
	}
	if e.BreakerTimeout == 0 {
		e.BreakerTimeout = 60 * time.Second
	}
	if e.Industry == "" {
		e.Industry = "retail"
	}
	if e.MaxQueries == 0 {
		e.MaxQueries = 8
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/demand_sentinel.db"
	}
	if c.Schedule.AnalysisCron == "" {
		c.Schedule.AnalysisCron = "0 0 6 * * *"
	}
	if c.Schedule.OptimizerCron == "" {
		c.Schedule.OptimizerCron = "0 30 6 * * 1"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	o := &c.Optimizer
	d := optimizer.DefaultTargets()
	if o.StateFile == "" {
		o.StateFile = "data/optimizer_state.json"
	}
	if o.RecentRuns == 0 {
		o.RecentRuns = optimizer.DefaultRecentRuns
	}
	if o.AlertVolume == 0 {
		o.AlertVolume = d.AlertVolume
	}
	if o.MaxFalsePositiveRate == 0 {
		o.MaxFalsePositiveRate = d.MaxFalsePositiveRate
	}
	if o.MaxCPUUsage == 0 {
		o.MaxCPUUsage = d.MaxCPUUsage
	}
	if o.MaxMemoryUsage == 0 {
		o.MaxMemoryUsage = d.MaxMemoryUsage
	}
	if o.MinPatternConfidence == 0 {
		o.MinPatternConfidence = d.MinPatternConfidence
	}
	if o.MinForecastAccuracy == 0 {
		o.MinForecastAccuracy = d.MinForecastAccuracy
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate returns the first violated rule.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.DataDir == "" {
			return fmt.Errorf("source.data_dir is required for the file source")
		}
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the http source")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceFile, SourceHTTP, c.Source.Kind)
	}
	if c.Source.HistoryDays < 0 {
		return fmt.Errorf("source.history_days must not be negative")
	}

	a := c.Analysis
	switch model.SensitivityLevel(a.SensitivityLevel) {
	case model.SensitivityLow, model.SensitivityMedium, model.SensitivityHigh:
	default:
		return fmt.Errorf("analysis.sensitivity_level must be LOW, MEDIUM or HIGH, got %q", a.SensitivityLevel)
	}
	if a.AnomalyThreshold <= 0 {
		return fmt.Errorf("analysis.anomaly_threshold must be positive")
	}
	if a.TrendDetectionWindowDays <= 0 {
		return fmt.Errorf("analysis.trend_detection_window_days must be positive")
	}
	if a.ForecastHorizonDays <= 0 {
		return fmt.Errorf("analysis.forecast_horizon_days must be positive")
	}
	if a.BaselineWindowDays <= 0 {
		return fmt.Errorf("analysis.baseline_window_days must be positive")
	}
	if a.Heuristics.DemandWindowDays < 0 {
		return fmt.Errorf("analysis.heuristics.demand_window_days must not be negative")
	}
	if a.Stock.ServiceLevel <= 0 || a.Stock.ServiceLevel >= 1 {
		return fmt.Errorf("analysis.stock.service_level must be in (0, 1)")
	}

	if c.Pipeline.GlobalTimeout <= 0 {
		return fmt.Errorf("pipeline.global_timeout must be positive")
	}
	if c.Pipeline.ConcurrencyLimit <= 0 {
		return fmt.Errorf("pipeline.concurrency_limit must be positive")
	}
	known := worker.DefaultTargets()
	for id, st := range c.Pipeline.Stages {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("pipeline.stages: unknown worker %q", id)
		}
		if st.MaxExecutionTime < 0 {
			return fmt.Errorf("pipeline.stages.%s.max_execution_time must not be negative", id)
		}
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := cronParser.Parse(c.Schedule.AnalysisCron); err != nil {
		return fmt.Errorf("schedule.analysis_cron: %w", err)
	}
	if _, err := cronParser.Parse(c.Schedule.OptimizerCron); err != nil {
		return fmt.Errorf("schedule.optimizer_cron: %w", err)
	}
	if c.Optimizer.RecentRuns <= 0 {
		return fmt.Errorf("optimizer.recent_runs must be positive")
	}
	return nil
}

// RunParams builds the per-run parameters from the analysis section.
func (c *Config) RunParams() model.RunParams {
	a := c.Analysis
	return model.RunParams{
		SensitivityLevel:         model.SensitivityLevel(a.SensitivityLevel),
		AnomalyThreshold:         a.AnomalyThreshold,
		TrendDetectionWindowDays: a.TrendDetectionWindowDays,
		SeasonalAdjustment:       a.SeasonalAdjustment == nil || *a.SeasonalAdjustment,
		ForecastHorizonDays:      a.ForecastHorizonDays,
		BaselineWindowDays:       a.BaselineWindowDays,
		ConcurrencyLimit:         c.Pipeline.ConcurrencyLimit,
		Heuristics:               a.Heuristics,
		Stock:                    a.Stock,
	}
}

// StageTargets merges the configured stage targets over the defaults.
func (c *Config) StageTargets() map[string]worker.Targets {
	out := worker.DefaultTargets()
	for id, st := range c.Pipeline.Stages {
		t := out[id]
		if st.MaxExecutionTime > 0 {
			t.MaxExecutionTime = st.MaxExecutionTime
		}
		if st.MinAccuracy > 0 {
			t.MinAccuracy = st.MinAccuracy
		}
		if st.MaxErrorRate > 0 {
			t.MaxErrorRate = st.MaxErrorRate
		}
		out[id] = t
	}
	return out
}

// OptimizerTargets builds the optimizer targets.
func (c *Config) OptimizerTargets() optimizer.Targets {
	o := c.Optimizer
	return optimizer.Targets{
		AlertVolume:          o.AlertVolume,
		MaxFalsePositiveRate: o.MaxFalsePositiveRate,
		MaxCPUUsage:          o.MaxCPUUsage,
		MaxMemoryUsage:       o.MaxMemoryUsage,
		MinPatternConfidence: o.MinPatternConfidence,
		MinForecastAccuracy:  o.MinForecastAccuracy,
		Stages:               c.StageTargets(),
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	out.Source.APIKey = mask(c.Source.APIKey)
	out.Enrichment.APIKey = mask(c.Enrichment.APIKey)
	out.Cache.RedisPassword = mask(c.Cache.RedisPassword)
	out.Telegram.BotToken = mask(c.Telegram.BotToken)
	return &out
}
