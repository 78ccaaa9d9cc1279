package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tbencze/alpha-pilot/internal/pricing"
)

//nolint:gochecknoglobals // Cobra boilerplate
var pointsCmd = &cobra.Command{
	Use:   "points <daily-buy-volume>",
	Short: "Show alpha points earned for a daily buy volume",
	Long: `Maps a daily buy volume onto the alpha-point curve and prints the
points earned plus the remaining volume to the next point.`,
	Args: cobra.ExactArgs(1),
	RunE: showPoints,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pointsCmd)
}

func showPoints(cmd *cobra.Command, args []string) error {
	volume, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("parse volume %q: %w", args[0], err)
	}

	stats := pricing.CalculateAlphaPointStats(volume)

	fmt.Printf("daily buy volume: %.2f\n", volume)
	fmt.Printf("alpha points:     %d\n", stats.Points)
	fmt.Printf("next point in:    %.2f\n", stats.NextThresholdDelta)

	return nil
}
