package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/condgate/condgate/internal/evaluation"
	"github.com/condgate/condgate/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintRuleSets outputs rule sets in the specified format
func PrintRuleSets(rulesets []store.RuleSet, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(rulesets)
	case FormatYAML:
		return printYAML(rulesets)
	case FormatTable:
		return printTable(rulesets)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintRuleSet outputs a single rule set in the specified format
func PrintRuleSet(rs *store.RuleSet, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(rs)
	case FormatYAML:
		return printYAML(rs)
	case FormatTable:
		return printTable([]store.RuleSet{*rs})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResults outputs evaluation results in the specified format
func PrintResults(results []evaluation.Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]evaluation.Result{"results": results})
	case FormatYAML:
		return printYAML(results)
	case FormatTable:
		return printResultsTable(results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	// Wrap slices of store.RuleSet in a "rulesets" key for consistency with documentation
	if rulesets, ok := data.([]store.RuleSet); ok {
		return encoder.Encode(map[string][]store.RuleSet{"rulesets": rulesets})
	}
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(rulesets []store.RuleSet) error {
	table := tablewriter.NewWriter(os.Stdout)

	// Set headers
	table.Header("Key", "Enabled", "Sample", "Env", "Description", "Updated At")

	// Add rows
	for _, rs := range rulesets {
		enabled := "false"
		if rs.Enabled {
			enabled = "true"
		}

		description := rs.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}

		table.Append(
			rs.Key,
			enabled,
			fmt.Sprintf("%d%%", rs.Sample),
			rs.Env,
			description,
			rs.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}

func printResultsTable(results []evaluation.Result) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("Key", "Matched", "Reason", "Error")

	for _, result := range results {
		matched := "false"
		if result.Matched {
			matched = "true"
		}

		table.Append(result.Key, matched, result.Reason, result.Error)
	}

	return table.Render()
}
