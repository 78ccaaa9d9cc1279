package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbencze/alpha-pilot/internal/app"
	"github.com/tbencze/alpha-pilot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the automation bot",
	Long: `Starts the alpha-pilot bot, which will:
1. Wake the scheduler on the configured interval
2. Read the trade tape and compute the VWAP reference price
3. Place paired limit buy / auto-sell orders at the configured offsets
4. Track daily buy volume and stop at the alpha-point target

Use --token to pin a token address without editing the environment.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("token", "t", "", "Token address to target (overrides TOKEN_ADDRESS)")
	runCmd.Flags().StringP("mode", "m", "", "Run mode: sim or hub (overrides RUN_MODE)")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mode, _ := cmd.Flags().GetString("mode")
	if mode != "" {
		cfg.RunMode = mode
		err = cfg.Validate()
		if err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	token, _ := cmd.Flags().GetString("token")

	application, err := app.New(cfg, logger, &app.Options{
		TokenAddress: token,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
