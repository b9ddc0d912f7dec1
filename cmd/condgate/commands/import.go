package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
)

var (
	importDryRun bool
	importForce  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rule sets from a file",
	Long: `Import rule sets from a YAML or JSON file.

Examples:
  condgate import rulesets.yaml --env prod
  condgate import rulesets.yaml --env staging --dry-run
  condgate import rulesets.yaml --env prod --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		// Read file
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		// Parse file; YAML is a superset of JSON so both formats work here
		var importData ExportFormat
		if err := yaml.Unmarshal(data, &importData); err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}

		// Validate rule sets
		if len(importData.RuleSets) == 0 {
			return fmt.Errorf("no rulesets found in file")
		}

		if verbose {
			fmt.Printf("Found %d ruleset(s) to import\n", len(importData.RuleSets))
		}

		// Dry run mode - just validate and show what would be imported
		if importDryRun {
			fmt.Println("Dry run mode - the following rulesets would be imported:")
			for _, rs := range importData.RuleSets {
				fmt.Printf("  - %s (enabled: %v, sample: %d%%, env: %s)\n",
					rs.Key, rs.Enabled, rs.Sample, rs.Env)
			}
			return nil
		}

		// Get environment configuration
		envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		ctx := context.Background()

		// Import rule sets
		successCount := 0
		errorCount := 0

		for _, rs := range importData.RuleSets {
			sample := rs.Sample
			params := client.UpsertRuleSetParams{
				Description: rs.Description,
				Enabled:     rs.Enabled,
				Sample:      &sample,
			}
			if rs.Rule != nil {
				rule, err := json.Marshal(rs.Rule)
				if err != nil {
					return fmt.Errorf("failed to encode rule for '%s': %w", rs.Key, err)
				}
				params.Rule = rule
			}

			if verbose {
				fmt.Printf("Importing ruleset: %s\n", rs.Key)
			}

			if _, err := c.UpsertRuleSet(ctx, rs.Key, params); err != nil {
				errorCount++
				fmt.Fprintf(os.Stderr, "Failed to import ruleset '%s': %v\n", rs.Key, err)
				if !importForce {
					return fmt.Errorf("import failed, use --force to continue on errors")
				}
			} else {
				successCount++
			}
		}

		if !quiet {
			fmt.Printf("Import complete: %d succeeded, %d failed (environment '%s')\n", successCount, errorCount, effectiveEnv)
		}

		if errorCount > 0 && !importForce {
			return fmt.Errorf("import completed with errors")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Continue on errors")
}
