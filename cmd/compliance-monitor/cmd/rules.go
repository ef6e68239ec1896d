package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"compliance-monitor/internal/resolver"
	"compliance-monitor/internal/rules"
	"compliance-monitor/pkg/config"
	"compliance-monitor/pkg/store"
)

var (
	rulesShowFirm    string
	rulesShowProgram string
)

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved Rules for a firm/program and where they came from",
	Long: `rules show runs the same three-tier resolution chain the monitor
uses (rule store -> compile-time preset -> error) and prints the resulting
Rules as JSON along with its source_tag.`,
	RunE: runRulesShow,
}

func init() {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect compliance rules",
	}
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)

	rulesShowCmd.Flags().StringVar(&rulesShowFirm, "firm", "", "firm name (required)")
	rulesShowCmd.Flags().StringVar(&rulesShowProgram, "program", "", "program id (optional)")
	rulesShowCmd.MarkFlagRequired("firm")
}

func runRulesShow(cmd *cobra.Command, args []string) error {
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
	resolved, sourceTag, err := res.Resolve(context.Background(), rulesShowFirm, rulesShowProgram, nil)
	if err != nil {
		return fmt.Errorf("resolve rules: %w", err)
	}

	out := struct {
		SourceTag resolver.SourceTag `json:"source_tag"`
		Rules     rules.Rules        `json:"rules"`
	}{SourceTag: sourceTag, Rules: resolved}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
