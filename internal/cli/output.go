package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintRules outputs rules in the specified format
func PrintRules(list []rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(list)
	case FormatYAML:
		return printYAML(list)
	case FormatTable:
		return printTable(list)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintRule outputs a single rule in the specified format
func PrintRule(rule *rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(rule)
	case FormatYAML:
		return printYAML(rule)
	case FormatTable:
		return printTable([]rules.Rule{*rule})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	// Wrap rule lists in a "rules" key for consistency with the API
	if list, ok := data.([]rules.Rule); ok {
		return encoder.Encode(map[string][]rules.Rule{"rules": list})
	}
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(list []rules.Rule) error {
	table := tablewriter.NewWriter(os.Stdout)

	// Set headers
	table.Header("ID", "Name", "Type", "Priority", "Action", "Active", "Version")

	// Add rows
	for _, rule := range list {
		active := "false"
		if rule.Active {
			active = "true"
		}

		id := rule.ID
		if len(id) > 12 {
			id = id[:12] + "..."
		}

		table.Append(
			id,
			rule.Name,
			string(rule.Kind),
			strconv.Itoa(rule.Priority),
			string(rule.Action),
			active,
			strconv.Itoa(rule.Version),
		)
	}

	return table.Render()
}
