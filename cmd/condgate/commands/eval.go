package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/condgate/condgate/internal/cli"
	"github.com/condgate/condgate/internal/client"
	"github.com/condgate/condgate/internal/evaluation"
)

var (
	evalAttrs      []string
	evalAttributes string
	evalKeys       []string
)

var evalCmd = &cobra.Command{
	Use:   "eval [subject-key]",
	Short: "Evaluate rule sets against a subject",
	Long: `Evaluate rule sets against a subject and report which ones match.

Attribute values given with --attr are coerced: "true"/"false" become
booleans and numeric strings become numbers; everything else stays a
string. --attributes takes a whole JSON object and --attr pairs are
applied on top of it. Without --keys, every rule set in the environment
is evaluated.

Examples:
  condgate eval user-123 --env prod
  condgate eval user-123 --attr plan=premium --attr age=42 --env prod
  condgate eval user-123 --attributes '{"plan":"premium","labels":["beta"]}' --env prod
  condgate eval user-123 --keys premium_gate,beta_access --env prod
  condgate eval --attr plan=premium --env prod`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := evaluation.Subject{}
		if len(args) == 1 {
			subject.Key = args[0]
		}

		if evalAttributes != "" {
			if err := json.Unmarshal([]byte(evalAttributes), &subject.Attributes); err != nil {
				return fmt.Errorf("invalid --attributes JSON: %w", err)
			}
		}

		if len(evalAttrs) > 0 {
			if subject.Attributes == nil {
				subject.Attributes = make(map[string]any, len(evalAttrs))
			}
			for _, attr := range evalAttrs {
				name, value, ok := strings.Cut(attr, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid attribute %q, expected name=value", attr)
				}
				subject.Attributes[name] = parseAttrValue(value)
			}
		}

		if subject.Key == "" && len(subject.Attributes) == 0 {
			return fmt.Errorf("a subject key or at least one attribute is required")
		}

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// Evaluate
		ctx := context.Background()
		resp, err := c.Evaluate(ctx, subject, evalKeys)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "etag: %s  evaluated at: %s\n", resp.ETag, resp.EvaluatedAt.Format("2006-01-02 15:04:05"))
		}

		if !quiet {
			if len(resp.Results) == 0 {
				fmt.Println("No rulesets evaluated")
				return nil
			}
			return cli.PrintResults(resp.Results, cli.OutputFormat(format))
		}

		return nil
	},
}

// parseAttrValue turns a command line attribute value into the type a rule
// most likely expects. Quoting forces a string: --attr 'version="1.0"'.
func parseAttrValue(s string) any {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringArrayVar(&evalAttrs, "attr", nil, "Subject attribute as name=value (repeatable)")
	evalCmd.Flags().StringVar(&evalAttributes, "attributes", "", "Subject attributes as a JSON object")
	evalCmd.Flags().StringSliceVar(&evalKeys, "keys", nil, "Comma-separated ruleset keys to evaluate (default: all)")
}
