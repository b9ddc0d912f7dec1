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
	exportOutput string
)

// ExportRuleSet is the file representation of a rule set. The condition
// tree is kept as a plain map so exported YAML stays readable and editable
// instead of serializing to an opaque byte blob.
type ExportRuleSet struct {
	Key         string         `yaml:"key" json:"key"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`
	Sample      int32          `yaml:"sample" json:"sample"`
	Rule        map[string]any `yaml:"rule,omitempty" json:"rule,omitempty"`
	Env         string         `yaml:"env" json:"env"`
}

// ExportFormat represents the structure for exporting rule sets
type ExportFormat struct {
	RuleSets []ExportRuleSet `yaml:"rulesets" json:"rulesets"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rule sets to a file",
	Long: `Export all rule sets from the specified environment to a YAML or JSON file.

Examples:
  condgate export --env prod --output rulesets.yaml
  condgate export --env prod --output rulesets.json --format json
  condgate export --env prod > backup.yaml`,
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

		exportData := ExportFormat{RuleSets: make([]ExportRuleSet, 0, len(rulesets))}
		for _, rs := range rulesets {
			entry := ExportRuleSet{
				Key:         rs.Key,
				Description: rs.Description,
				Enabled:     rs.Enabled,
				Sample:      rs.Sample,
				Env:         rs.Env,
			}
			if len(rs.Rule) > 0 {
				if err := json.Unmarshal(rs.Rule, &entry.Rule); err != nil {
					return fmt.Errorf("failed to decode rule for '%s': %w", rs.Key, err)
				}
			}
			exportData.RuleSets = append(exportData.RuleSets, entry)
		}

		// Determine output destination
		var output *os.File
		if exportOutput == "" || exportOutput == "-" {
			output = os.Stdout
		} else {
			output, err = os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer output.Close()
		}

		// Export based on format
		switch format {
		case "json":
			encoder := json.NewEncoder(output)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
		case "yaml", "table":
			// Default to YAML for export
			encoder := yaml.NewEncoder(output)
			defer encoder.Close()
			encoder.SetIndent(2)
			if err := encoder.Encode(exportData); err != nil {
				return fmt.Errorf("failed to encode YAML: %w", err)
			}
		default:
			return fmt.Errorf("unsupported export format: %s", format)
		}

		if exportOutput != "" && exportOutput != "-" && !quiet {
			fmt.Fprintf(os.Stderr, "Successfully exported %d ruleset(s) to %s\n", len(rulesets), exportOutput)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
