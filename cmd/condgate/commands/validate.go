package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
	"github.com/condgate/condgate/internal/validation"
)

var (
	validateSample      int32
	validateRule        string
	validateRuleFile    string
	validateDescription string
	validateLocal       bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <key>",
	Short: "Validate a rule set without saving it",
	Long: `Run the validation checks for a rule set without writing anything.
Useful before a create or import. With --local the checks run in-process
and no server or configuration is needed.

Examples:
  condgate validate premium_gate --rule-file rule.json --env prod
  condgate validate premium_gate --rule '{"type":"condition","attribute_name":"plan","operator":"eq","reference_value":"premium"}' --local`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		// Read the rule as-is; a tree that fails to parse should still
		// reach the validator so the error lands in the field report.
		rule, err := readRule(validateRule, validateRuleFile)
		if err != nil {
			return err
		}

		if validateLocal {
			envName := env
			if envName == "" {
				envName = "prod"
			}
			result := validation.ValidateRuleSet(validation.RuleSetValidationParams{
				Key:         key,
				Env:         envName,
				Description: validateDescription,
				Sample:      validateSample,
				Rule:        rule,
			})
			return printValidation(key, result.Valid, result.Errors)
		}

		// Get environment configuration
		envCfg, effectiveEnv, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		params := client.ValidateParams{
			Key:         key,
			Env:         effectiveEnv,
			Description: validateDescription,
			Rule:        rule,
		}
		if cmd.Flags().Changed("sample") {
			params.Sample = &validateSample
		}

		ctx := context.Background()
		result, err := c.Validate(ctx, params)
		if err != nil {
			return fmt.Errorf("validation request failed: %w", err)
		}
		return printValidation(key, result.Valid, result.Errors)
	},
}

func printValidation(key string, valid bool, errs map[string]string) error {
	if valid {
		if !quiet {
			fmt.Printf("Ruleset '%s' is valid\n", key)
		}
		return nil
	}

	fmt.Printf("Ruleset '%s' is invalid:\n", key)
	for field, msg := range errs {
		fmt.Printf("  %s: %s\n", field, msg)
	}
	return fmt.Errorf("validation failed")
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Int32Var(&validateSample, "sample", 100, "Sample percentage (0-100)")
	validateCmd.Flags().StringVar(&validateRule, "rule", "", "Condition tree as JSON")
	validateCmd.Flags().StringVar(&validateRuleFile, "rule-file", "", "Path to a JSON file containing the condition tree")
	validateCmd.Flags().StringVar(&validateDescription, "description", "", "Ruleset description")
	validateCmd.Flags().BoolVar(&validateLocal, "local", false, "Validate in-process without contacting a server")
}
