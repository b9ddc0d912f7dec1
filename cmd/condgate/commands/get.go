package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a rule set",
	Long: `Get details of a specific rule set.

Examples:
  condgate get premium_gate --env prod
  condgate get premium_gate --env prod --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// Get rule set
		ctx := context.Background()
		rs, err := c.GetRuleSet(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to get ruleset: %w", err)
		}

		if !quiet {
			return cli.PrintRuleSet(rs, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
