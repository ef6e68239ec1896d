package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"compliance-monitor/internal/api"
	"compliance-monitor/internal/monitor"
	"compliance-monitor/internal/notifier"
	"compliance-monitor/internal/registry"
	"compliance-monitor/internal/resolver"
	"compliance-monitor/internal/rules"
	"compliance-monitor/internal/supervisor"
	"compliance-monitor/pkg/config"
	"compliance-monitor/pkg/store"
)

var monitorConfigPath string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the supervisor: one monitor loop per configured account",
	Long: `monitor loads the account set (from --config, or from the
single-account environment form if --config is omitted), resolves each
account's Rules, and runs one monitor loop per account until interrupted.

It also serves the review API, health, status, and metrics endpoints on
the configured port — this is the "combined mode" referenced by GET
/health.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorConfigPath, "config", "", "path to the account-set JSON file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return ConfigError(fmt.Errorf("load config: %w", err))
	}

	var accounts []config.AccountConfig
	if monitorConfigPath != "" {
		accounts, err = config.LoadAccountSet(monitorConfigPath)
		if err != nil {
			return ConfigError(err)
		}
	} else {
		acct, err := config.LoadSingleAccountFromEnv()
		if err != nil {
			return ConfigError(err)
		}
		accounts = []config.AccountConfig{acct}
	}
	if len(accounts) == 0 {
		return ConfigError(fmt.Errorf("no accounts configured"))
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return ConfigError(fmt.Errorf("open rule store: %w", err))
	}
	defer db.Close()

	presets, err := rules.DefaultPresetRegistry()
	if err != nil {
		return ConfigError(fmt.Errorf("load rule presets: %w", err))
	}
	res := resolver.New(db, presets)
	metrics := monitor.NewMetrics(prometheus.DefaultRegisterer)
	dispatch := notifier.NewDispatcher(
		[]notifier.Sink{notifier.NewDefaultTerminalSink()},
		notifier.WithDropCallback(func(accountLabel string, sinkIndex int) {
			metrics.DispatchDropped.WithLabelValues(accountLabel).Inc()
		}),
	)
	defer dispatch.Close()

	sup := supervisor.New(res, registry.DefaultFactory, dispatch, metrics)

	specs := make([]supervisor.AccountSpec, 0, len(accounts))
	for _, a := range accounts {
		specs = append(specs, supervisor.AccountSpec{
			Label:           a.Label,
			Firm:            a.Firm,
			ProgramID:       a.ProgramID,
			StartingBalance: a.StartingBalance,
			CheckInterval:   time.Duration(a.CheckIntervalSeconds) * time.Second,
			Enabled:         a.Enabled,
			InlineRules:     a.InlineRules,
			PresetName:      a.RulesPresetName,
			Credentials:     a.Credentials(),
		})
	}

	srv := api.NewServer(res, db, sup, metrics)
	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Printf("monitor: api server exited: %v", err)
		}
	}()

	grace := time.Duration(cfg.ShutdownGraceSeconds) * time.Second
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("monitor: starting %d account(s), grace=%s", len(specs), grace)
	sup.Run(ctx, specs, grace)
	log.Printf("monitor: clean shutdown")
	return nil
}
