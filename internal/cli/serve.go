package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"DemandSentinel/internal/config"
	"DemandSentinel/internal/scheduler"
	"DemandSentinel/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled analyses",
	Long: `Start the HTTP API (/health, /runs, /runs/{id}, /analyze, /optimize,
/anomalies/stats, /metrics),
the cron schedule for analysis and optimizer runs, and, when telegram is
configured, command polling.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		runOnStart, _ := cmd.Flags().GetBool("run-on-start")
		if os.Getenv("RUN_ON_START") == "true" {
			runOnStart = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		var schedules [2]string
		a, log, cleanup, err := setup(ctx, reg, func(c *config.Config) {
			if addr != "" {
				c.Server.Addr = addr
			}
			addr = c.Server.Addr
			schedules = [2]string{c.Schedule.AnalysisCron, c.Schedule.OptimizerCron}
		})
		if err != nil {
			return err
		}
		defer cleanup()

		var sender scheduler.Sender
		if a.Notifier != nil {
			sender = a.Notifier
		}
		sched := scheduler.NewScheduler(ctx, a.Service, sender, log)
		if err := sched.RegisterAll(schedules[0], schedules[1]); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.New(a.Service, a.Metrics, reg, log).ListenAndServe(gctx, addr)
		})
		if a.Notifier != nil {
			g.Go(func() error {
				a.Notifier.StartPolling(gctx, sched.HandleCommand)
				return nil
			})
			log.Infof(ctx, "telegram polling started")
		}
		if runOnStart {
			log.Infof(ctx, "run-on-start enabled, executing analysis now")
			go sched.RunAnalysisNow()
		}

		log.Infof(ctx, "DemandSentinel is running. Press Ctrl+C to stop.")
		err = g.Wait()
		log.Infof(ctx, "DemandSentinel stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	serveCmd.Flags().Bool("run-on-start", false, "run an analysis immediately (also RUN_ON_START=true)")
}
