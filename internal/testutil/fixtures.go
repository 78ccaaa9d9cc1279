package testutil

import "github.com/tbencze/alpha-pilot/pkg/types"

// SampleTrades returns a small valid trade tape whose VWAP is 59/60.
func SampleTrades() []types.TradeSample {
	return []types.TradeSample{
		{Time: "12:00:01", Price: 1.0, Quantity: 10},
		{Time: "12:00:02", Price: 1.1, Quantity: 20},
		{Time: "12:00:03", Price: 0.9, Quantity: 30},
	}
}

// TestTokenAddress is a well-formed lowercased token address.
const TestTokenAddress = "0xabcdef0123456789abcdef0123456789abcdef01"
