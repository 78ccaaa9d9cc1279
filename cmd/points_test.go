package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbencze/alpha-pilot/internal/pricing"
)

func TestShowPoints(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{name: "integer-volume", arg: "100"},
		{name: "fractional-volume", arg: "1.5"},
		{name: "zero-volume", arg: "0"},
		{name: "not-a-number", arg: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := showPoints(pointsCmd, []string{tt.arg})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPointsCurveSpotChecks(t *testing.T) {
	// The doubling curve the command reports on.
	assert.Equal(t, 0, pricing.CalculateAlphaPointStats(1).Points)
	assert.Equal(t, 1, pricing.CalculateAlphaPointStats(2).Points)
	assert.Equal(t, 6, pricing.CalculateAlphaPointStats(100).Points)
	assert.InDelta(t, 28.0, pricing.CalculateAlphaPointStats(100).NextThresholdDelta, 1e-9)
}
