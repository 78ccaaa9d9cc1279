package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "alpha-pilot",
	Short: "Exchange alpha-point automation bot",
	Long: `Alpha-pilot automates paired limit orders on an exchange alpha page.

Each cycle reads the recent trade tape, computes a volume-weighted reference
price, and places a limit buy with a mirrored auto-sell at configurable
offsets. Daily buy volume is folded into the alpha-point curve; the bot
stops itself when the configured point target or trade-count ceiling is
reached.

In sim mode the whole loop runs in-process against a simulated page. In hub
mode the bot exposes a websocket hub and waits for page agents to connect;
the agent command runs such a page agent as its own process.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
