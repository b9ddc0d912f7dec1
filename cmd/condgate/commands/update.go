package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
)

var (
	updateEnabled     bool
	updateSample      int32
	updateRule        string
	updateRuleFile    string
	updateDescription string
	updateClearRule   bool
)

var updateCmd = &cobra.Command{
	Use:   "update <key>",
	Short: "Update a rule set",
	Long: `Update an existing rule set. Fields that are not specified keep
their current values; --clear-rule removes the condition tree so the
ruleset matches every subject again.

Examples:
  condgate update premium_gate --enabled=false --env prod
  condgate update premium_gate --sample 75 --env prod
  condgate update premium_gate --rule-file rule.json --env prod
  condgate update premium_gate --clear-rule --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		// Get environment configuration
		envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		if updateClearRule && (updateRule != "" || updateRuleFile != "") {
			return fmt.Errorf("--clear-rule cannot be combined with --rule or --rule-file")
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// First, get the existing rule set to preserve values
		ctx := context.Background()
		existing, err := c.GetRuleSet(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to get existing ruleset: %w", err)
		}

		// Build update params, starting with existing values
		params := client.UpsertRuleSetParams{
			Description: existing.Description,
			Enabled:     existing.Enabled,
			Sample:      &existing.Sample,
			Rule:        existing.Rule,
		}

		// Update with new values if explicitly provided
		if cmd.Flags().Changed("enabled") {
			params.Enabled = updateEnabled
		}
		if cmd.Flags().Changed("sample") {
			params.Sample = &updateSample
		}
		if cmd.Flags().Changed("description") {
			params.Description = updateDescription
		}
		if updateRule != "" || updateRuleFile != "" {
			rule, err := loadRule(updateRule, updateRuleFile)
			if err != nil {
				return err
			}
			params.Rule = rule
		}
		if updateClearRule {
			params.Rule = nil
		}

		// Update rule set
		if _, err := c.UpsertRuleSet(ctx, key, params); err != nil {
			return fmt.Errorf("failed to update ruleset: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully updated ruleset '%s' in environment '%s'\n", key, effectiveEnv)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&updateEnabled, "enabled", false, "Enable/disable the ruleset")
	updateCmd.Flags().Int32Var(&updateSample, "sample", 0, "Sample percentage (0-100)")
	updateCmd.Flags().StringVar(&updateRule, "rule", "", "Condition tree as JSON")
	updateCmd.Flags().StringVar(&updateRuleFile, "rule-file", "", "Path to a JSON file containing the condition tree")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "Ruleset description")
	updateCmd.Flags().BoolVar(&updateClearRule, "clear-rule", false, "Remove the condition tree (ruleset matches everyone)")
}
