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
	Use:   "decisionctl",
	Short: "CLI tool for managing decision rules",
	Long: `Decisionctl is a command-line tool for administering the payment decision
engine: creating, reading, updating, and deleting business rules, importing
and exporting rule sets, and inspecting the engine's active configuration.

Examples:
  decisionctl list --env prod
  decisionctl create block-high-fraud --type authentication --action decline \
    --condition '{">=": [{"var": "fraud_score"}, 0.9]}' --env prod
  decisionctl get 3f8a... --env prod
  decisionctl export --env prod --output rules.yaml
  decisionctl import rules.yaml --env staging
  decisionctl status --env prod`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the decision engine API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
