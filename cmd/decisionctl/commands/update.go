package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
)

var (
	updateName      string
	updateCondition string
	updateAction    string
	updateRouteTo   string
	updateBackoff   int
	updateSummary   string
	updatePriority  int
	updateActive    bool
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a decision rule",
	Long: `Update an existing decision rule. Only the flags you pass are changed;
the server bumps the rule version on every update.

Examples:
  decisionctl update 3f8a1c0e --priority 10 --env prod
  decisionctl update 3f8a1c0e --active=false --env prod
  decisionctl update 3f8a1c0e --condition '{">=": [{"var": "fraud_score"}, 0.95]}' --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Only flags the caller actually set go into the patch, so the
		// server can tell "unset" from "set to zero value".
		patch := map[string]any{}
		if cmd.Flags().Changed("name") {
			patch["name"] = updateName
		}
		if cmd.Flags().Changed("condition") {
			patch["condition_expression"] = updateCondition
		}
		if cmd.Flags().Changed("action") {
			patch["action"] = updateAction
		}
		if cmd.Flags().Changed("route-to") {
			patch["route_to"] = updateRouteTo
		}
		if cmd.Flags().Changed("backoff") {
			patch["backoff_seconds"] = updateBackoff
		}
		if cmd.Flags().Changed("summary") {
			patch["action_summary"] = updateSummary
		}
		if cmd.Flags().Changed("priority") {
			patch["priority"] = updatePriority
		}
		if cmd.Flags().Changed("active") {
			patch["is_active"] = updateActive
		}
		if len(patch) == 0 {
			return fmt.Errorf("no fields to update, pass at least one flag")
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		ctx := context.Background()
		updated, err := c.UpdateRule(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully updated rule '%s' (version %d)\n", updated.Name, updated.Version)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateName, "name", "", "Rule name")
	updateCmd.Flags().StringVar(&updateCondition, "condition", "", "JSON Logic condition expression")
	updateCmd.Flags().StringVar(&updateAction, "action", "", "Action taken when the rule matches")
	updateCmd.Flags().StringVar(&updateRouteTo, "route-to", "", "Target route for route_to actions")
	updateCmd.Flags().IntVar(&updateBackoff, "backoff", 0, "Backoff seconds for retry_later actions")
	updateCmd.Flags().StringVar(&updateSummary, "summary", "", "Operator-facing action summary")
	updateCmd.Flags().IntVar(&updatePriority, "priority", 0, "Priority (lower value wins)")
	updateCmd.Flags().BoolVar(&updateActive, "active", true, "Activate/deactivate the rule")
	updateCmd.Flags().Lookup("active").NoOptDefVal = "true"
}
