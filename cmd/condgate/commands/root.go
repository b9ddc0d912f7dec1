package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "condgate",
	Short: "CLI tool for managing condition rule sets",
	Long: `Condgate is a command-line tool for managing condition rule sets in the condgate service.

It provides commands for creating, reading, updating, and deleting rule sets,
evaluating subjects against them, and importing and exporting configurations.

Examples:
  condgate list --env prod
  condgate create premium_gate --rule '{"type":"condition","attribute_name":"plan","operator":"eq","reference_value":"premium"}' --env prod
  condgate get premium_gate --env prod
  condgate eval user-123 --attr plan=premium --env prod
  condgate export --env prod --output rulesets.yaml
  condgate import rulesets.yaml --env staging`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the condgate API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
