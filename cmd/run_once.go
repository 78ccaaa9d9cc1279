package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tbencze/alpha-pilot/internal/app"
	"github.com/tbencze/alpha-pilot/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run a single observation cycle and print the resulting state",
	Long: `Runs one evaluation cycle against the simulated page without placing
any orders, then prints the resulting scheduler state as JSON. Useful for
checking VWAP and offset configuration before enabling automation.`,
	RunE: runOnce,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runOnceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.RunMode = "sim"

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		_ = application.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := application.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run once: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
