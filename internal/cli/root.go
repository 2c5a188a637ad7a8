package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"DemandSentinel/internal/app"
	"DemandSentinel/internal/config"
	"DemandSentinel/internal/logger"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "DemandSentinel: demand analysis for inventory data",
	Long: `DemandSentinel runs a staged analysis over sales history and inventory
snapshots: demand patterns, forecasts, stock parameters, anomaly detection and
optional market context. Each run produces prioritized alerts, recommendations
and KPIs, and is kept in a SQLite history.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sentinel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sentinel version %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// setup loads the config and builds the application. The returned
// cleanup flushes the logger and closes resources.
func setup(ctx context.Context, reg prometheus.Registerer, mutate func(*config.Config)) (*app.App, logger.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("config validation: %w", err)
		}
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.Build(ctx, cfg, log, reg)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Errorf(ctx, "close: %v", err)
		}
		log.Sync()
	}
	return a, log, cleanup, nil
}
