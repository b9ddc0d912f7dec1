package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
	"github.com/condgate/condgate/internal/store"
)

var (
	listEnabledOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rule sets",
	Long: `List all rule sets in the specified environment.

Examples:
  condgate list --env prod
  condgate list --env prod --format json
  condgate list --env prod --enabled-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// List rule sets
		ctx := context.Background()
		rulesets, err := c.ListRuleSets(ctx)
		if err != nil {
			return fmt.Errorf("failed to list rulesets: %w", err)
		}

		// Filter enabled only if requested
		if listEnabledOnly {
			var enabled []store.RuleSet
			for _, rs := range rulesets {
				if rs.Enabled {
					enabled = append(enabled, rs)
				}
			}
			rulesets = enabled
		}

		if !quiet {
			if len(rulesets) == 0 {
				fmt.Println("No rulesets found")
				return nil
			}
			return cli.PrintRuleSets(rulesets, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listEnabledOnly, "enabled-only", false, "Show only enabled rulesets")
}
