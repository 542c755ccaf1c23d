package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/rules"
)

var (
	createID        string
	createRuleType  string
	createCondition string
	createAction    string
	createRouteTo   string
	createBackoff   int
	createSummary   string
	createPriority  int
	createInactive  bool
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new decision rule",
	Long: `Create a new decision rule with the specified name and options.

The condition is a JSON Logic expression over the decision document.

Examples:
  decisionctl create block-high-fraud --type authentication --action decline \
    --condition '{">=": [{"var": "fraud_score"}, 0.9]}' \
    --summary "fraud score above hard ceiling" --priority 5 --env prod
  decisionctl create route-big-domestic --type routing --action route_to \
    --route-to acquirer_a --condition '{"and": [{"!": {"var": "is_cross_border"}}, {">": [{"var": "amount"}, 1000]}]}' \
    --summary "large domestic volume to primary acquirer" --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		rule := rules.Rule{
			ID:             createID,
			Name:           name,
			Kind:           decision.Kind(createRuleType),
			Condition:      createCondition,
			Action:         decision.Action(createAction),
			RouteTo:        createRouteTo,
			BackoffSeconds: createBackoff,
			Summary:        createSummary,
			Priority:       createPriority,
			Active:         !createInactive,
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		ctx := context.Background()
		created, err := c.CreateRule(ctx, rule)
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully created rule '%s' (id %s)\n", created.Name, created.ID)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createID, "id", "", "Rule id (generated when omitted)")
	createCmd.Flags().StringVar(&createRuleType, "type", "", "Rule type (authentication, retry, routing)")
	createCmd.Flags().StringVar(&createCondition, "condition", "", "JSON Logic condition expression")
	createCmd.Flags().StringVar(&createAction, "action", "", "Action taken when the rule matches")
	createCmd.Flags().StringVar(&createRouteTo, "route-to", "", "Target route for route_to actions")
	createCmd.Flags().IntVar(&createBackoff, "backoff", 0, "Backoff seconds for retry_later actions")
	createCmd.Flags().StringVar(&createSummary, "summary", "", "Operator-facing action summary")
	createCmd.Flags().IntVar(&createPriority, "priority", 100, "Priority (lower value wins)")
	createCmd.Flags().BoolVar(&createInactive, "inactive", false, "Create the rule deactivated")

	_ = createCmd.MarkFlagRequired("type")
	_ = createCmd.MarkFlagRequired("condition")
	_ = createCmd.MarkFlagRequired("action")
}
