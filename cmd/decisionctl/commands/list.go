package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

var (
	listRuleType   string
	listActiveOnly bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all decision rules",
	Long: `List all decision rules known to the engine.

Examples:
  decisionctl list --env prod
  decisionctl list --env prod --format json
  decisionctl list --env prod --type retry --active-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// List rules
		ctx := context.Background()
		list, err := c.ListRules(ctx)
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		// Apply filters
		if listRuleType != "" || listActiveOnly {
			var filtered []rules.Rule
			for _, r := range list {
				if listRuleType != "" && string(r.Kind) != listRuleType {
					continue
				}
				if listActiveOnly && !r.Active {
					continue
				}
				filtered = append(filtered, r)
			}
			list = filtered
		}

		if !quiet {
			if len(list) == 0 {
				fmt.Println("No rules found")
				return nil
			}
			return cli.PrintRules(list, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listRuleType, "type", "", "Filter by rule type (authentication, retry, routing)")
	listCmd.Flags().BoolVar(&listActiveOnly, "active-only", false, "Show only active rules")
}
