package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/cli"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine's active configuration snapshot",
	Long: `Show a summary of the configuration snapshot the engine is currently
deciding with: the snapshot etag, its age, the known routes, and the
engine parameters.

Examples:
  decisionctl status --env prod
  decisionctl status --env prod --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get environment configuration
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		// Create API client
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		ctx := context.Background()
		status, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get engine status: %w", err)
		}

		if quiet {
			return nil
		}

		switch format {
		case "json":
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		case "yaml":
			encoder := yaml.NewEncoder(os.Stdout)
			defer encoder.Close()
			encoder.SetIndent(2)
			return encoder.Encode(status)
		default:
			fmt.Printf("ETag:          %s\n", status.ETag)
			fmt.Printf("Fetched at:    %s\n", status.FetchedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("Staleness:     %.1fs\n", status.StalenessSeconds)
			fmt.Printf("Routes:        %s\n", strings.Join(status.Routes, ", "))
			fmt.Printf("Decline codes: %d\n", status.DeclineCodeCount)
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
