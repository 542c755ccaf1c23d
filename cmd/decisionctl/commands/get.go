package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a decision rule",
	Long: `Get details of a specific decision rule.

Examples:
  decisionctl get 3f8a1c0e --env prod
  decisionctl get 3f8a1c0e --env prod --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		// Get rule
		ctx := context.Background()
		rule, err := c.GetRule(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}

		if !quiet {
			return cli.PrintRule(rule, cli.OutputFormat(format))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
