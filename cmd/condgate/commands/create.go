package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	condgate "github.com/condgate/condgate"
	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
)

var (
	createEnabled     bool
	createSample      int32
	createRule        string
	createRuleFile    string
	createDescription string
)

var createCmd = &cobra.Command{
	Use:   "create <key>",
	Short: "Create a new rule set",
	Long: `Create a new rule set with the specified key and options.

A rule set without a rule matches every subject; use --rule or --rule-file
to attach a condition tree.

Examples:
  condgate create beta_access --enabled --sample 50 --env prod
  condgate create premium_gate --enabled --rule '{"type":"condition","attribute_name":"plan","operator":"eq","reference_value":"premium"}'
  condgate create premium_gate --enabled --rule-file rule.json --description "Premium plan gate"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		// Get environment configuration
		envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Parse the rule up front so a typo fails before any request is made
		rule, err := loadRule(createRule, createRuleFile)
		if err != nil {
			return err
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// Create rule set
		params := client.UpsertRuleSetParams{
			Description: createDescription,
			Enabled:     createEnabled,
			Sample:      &createSample,
			Rule:        rule,
		}

		ctx := context.Background()
		if _, err := c.UpsertRuleSet(ctx, key, params); err != nil {
			return fmt.Errorf("failed to create ruleset: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully created ruleset '%s' in environment '%s'\n", key, effectiveEnv)
		}

		return nil
	},
}

// readRule reads condition tree bytes from an inline JSON string or a file.
func readRule(inline, file string) (json.RawMessage, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("--rule and --rule-file are mutually exclusive")
	}

	switch {
	case inline != "":
		return json.RawMessage(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read rule file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

// loadRule reads a condition tree and checks that it parses before it is
// sent anywhere.
func loadRule(inline, file string) (json.RawMessage, error) {
	data, err := readRule(inline, file)
	if err != nil || data == nil {
		return data, err
	}
	if _, err := condgate.FromJSON(data); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().BoolVar(&createEnabled, "enabled", false, "Enable the ruleset")
	createCmd.Flags().Int32Var(&createSample, "sample", 100, "Sample percentage (0-100)")
	createCmd.Flags().StringVar(&createRule, "rule", "", "Condition tree as JSON")
	createCmd.Flags().StringVar(&createRuleFile, "rule-file", "", "Path to a JSON file containing the condition tree")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Ruleset description")
}
