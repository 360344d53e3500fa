package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/frahmantamala/hr-ops/internal/core/rules"
	rulesPostgres "github.com/frahmantamala/hr-ops/internal/core/rules/postgres"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Settlement rule set commands",
	Long:  `Inspect, validate and publish the settlement rule set.`,
}

var showRulesCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rule set in force",
	Long:  `Print the newest published rule set, falling back to settlement_rules from config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		sqlDB, db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		provider := rules.Chain{
			rulesPostgres.NewRuleSetRepository(db),
			rules.NewStatic(cfg.SettlementRules),
		}
		current, err := provider.Current(cmd.Context())
		if err != nil {
			return err
		}
		return printRules(current)
	},
}

var validateRulesCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate settlement_rules from config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if err := cfg.SettlementRules.Validate(); err != nil {
			return err
		}
		fmt.Println("settlement rules valid, version:", cfg.SettlementRules.Version)
		return nil
	},
}

var publishRulesCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish settlement_rules from config as a new active version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cfg.SettlementRules == nil {
			return rules.ErrNotConfigured
		}
		if publishVersion != "" {
			cfg.SettlementRules.Version = publishVersion
		}
		sqlDB, db, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		repo := rulesPostgres.NewRuleSetRepository(db)
		if err := repo.Publish(context.Background(), cfg.SettlementRules, nil); err != nil {
			return fmt.Errorf("publish rule set %s: %w", cfg.SettlementRules.Version, err)
		}
		fmt.Println("published settlement rules version:", cfg.SettlementRules.Version)
		return nil
	},
}

var publishVersion string

func printRules(s *rules.Settlement) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func init() {
	publishRulesCmd.Flags().StringVar(&publishVersion, "version", "", "Version label (overrides settlement_rules.version)")

	rulesCmd.AddCommand(showRulesCmd)
	rulesCmd.AddCommand(validateRulesCmd)
	rulesCmd.AddCommand(publishRulesCmd)

	rootCmd.AddCommand(rulesCmd)
}
