package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbencze/alpha-pilot/internal/app"
	"github.com/tbencze/alpha-pilot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a standalone page agent connected to a hub",
	Long: `Starts the page side on its own: the simulated exchange page, order
monitor, placer and engine, connected to a running alpha-pilot hub
(run --mode hub) over its /ws endpoint. The hub's scheduler drives the
agent with control and run commands and collects task results.

Set HUB_URL to the hub's websocket endpoint, e.g. ws://localhost:8080/ws.`,
	RunE: runAgent,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().StringP("token", "t", "", "Token address to target (overrides TOKEN_ADDRESS)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	token, _ := cmd.Flags().GetString("token")

	agent, err := app.NewAgent(cfg, logger, &app.Options{
		TokenAddress: token,
	})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	err = agent.Run()
	if err != nil {
		return fmt.Errorf("run agent: %w", err)
	}

	return nil
}
