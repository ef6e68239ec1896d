package cmd

import (
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"compliance-monitor/internal/api"
	"compliance-monitor/internal/monitor"
	"compliance-monitor/internal/resolver"
	"compliance-monitor/internal/rules"
	"compliance-monitor/pkg/config"
	"compliance-monitor/pkg/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run the stateless compliance review HTTP API",
	Long: `review serves POST /compliance/review and nothing else: no
account is monitored, no anchor is tracked. Each call resolves Rules for
the caller-supplied (firm, program_id) and evaluates the caller-supplied
account snapshot.`,
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return ConfigError(fmt.Errorf("load config: %w", err))
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
	srv := api.NewServer(res, db, nil, metrics)

	log.Printf("review: listening on :%s", cfg.Port)
	if err := srv.Start(":" + cfg.Port); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
