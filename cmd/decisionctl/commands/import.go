package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
)

var (
	importDryRun bool
	importForce  bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import rules from a file",
	Long: `Import decision rules from a YAML or JSON file.

Examples:
  decisionctl import rules.yaml --env prod
  decisionctl import rules.yaml --env staging --dry-run
  decisionctl import rules.yaml --env prod --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		// Read file
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		// Parse file
		var importData ExportFormat
		if err := yaml.Unmarshal(data, &importData); err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}

		// Validate rules
		if len(importData.Rules) == 0 {
			return fmt.Errorf("no rules found in file")
		}

		if verbose {
			fmt.Printf("Found %d rule(s) to import\n", len(importData.Rules))
		}

		// Dry run mode - just validate and show what would be imported
		if importDryRun {
			fmt.Println("Dry run mode - the following rules would be imported:")
			for _, rule := range importData.Rules {
				fmt.Printf("  - %s (type: %s, action: %s, priority: %d, active: %v)\n",
					rule.Name, rule.Kind, rule.Action, rule.Priority, rule.Active)
			}
			return nil
		}

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		ctx := context.Background()

		// Import rules
		successCount := 0
		errorCount := 0

		for _, rule := range importData.Rules {
			if verbose {
				fmt.Printf("Importing rule: %s\n", rule.Name)
			}

			if _, err := c.CreateRule(ctx, rule); err != nil {
				errorCount++
				fmt.Fprintf(os.Stderr, "Failed to import rule '%s': %v\n", rule.Name, err)
				if !importForce {
					return fmt.Errorf("import failed, use --force to continue on errors")
				}
			} else {
				successCount++
			}
		}

		if !quiet {
			fmt.Printf("Import complete: %d succeeded, %d failed\n", successCount, errorCount)
		}

		if errorCount > 0 && !importForce {
			return fmt.Errorf("import completed with errors")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate without importing")
	importCmd.Flags().BoolVar(&importForce, "force", false, "Continue on errors")
}
