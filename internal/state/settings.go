package state

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tbencze/alpha-pilot/internal/pricing"
)

// Points configuration bounds. Setters clamp silently, matching the offset
// setters: a wild value degrades to the nearest bound, never to an error.
const (
	MinPointsSetting = 1
	MaxPointsSetting = 1000
)

// Settings holds the operator-tunable knobs. Zero value is not valid; use
// DefaultSettings.
type Settings struct {
	PriceOffsetPercent float64            `json:"priceOffsetPercent"`
	BuyPriceOffset     float64            `json:"buyPriceOffset"`
	SellPriceOffset    float64            `json:"sellPriceOffset"`
	PriceOffsetMode    pricing.OffsetMode `json:"priceOffsetMode"`

	// TokenAddress is the 0x-prefixed, lowercased 40-hex-char address of the
	// token whose page the bot targets.
	TokenAddress string `json:"tokenAddress,omitempty"`

	// PointsFactor is the daily trade-count ceiling.
	PointsFactor int `json:"pointsFactor"`
	// PointsTarget is the daily alpha-point goal; reaching it stops the bot.
	PointsTarget int `json:"pointsTarget"`
}

// DefaultSettings returns the settings applied on first run.
func DefaultSettings() Settings {
	return Settings{
		PriceOffsetPercent: 0,
		BuyPriceOffset:     -0.01,
		SellPriceOffset:    0.01,
		PriceOffsetMode:    pricing.OffsetModeSideways,
		PointsFactor:       20,
		PointsTarget:       15,
	}
}

// SetPriceOffsetPercent stores a clamped shared offset.
func (s *Settings) SetPriceOffsetPercent(pct float64) {
	s.PriceOffsetPercent = pricing.ClampOffset(pct)
}

// SetBuyPriceOffset stores a clamped buy-side offset.
func (s *Settings) SetBuyPriceOffset(pct float64) {
	s.BuyPriceOffset = pricing.ClampOffset(pct)
}

// SetSellPriceOffset stores a clamped sell-side offset.
func (s *Settings) SetSellPriceOffset(pct float64) {
	s.SellPriceOffset = pricing.ClampOffset(pct)
}

// SetPriceOffsetMode switches the offset mode and, for the preset modes,
// pre-fills the buy/sell offsets. Custom keeps whatever is stored.
func (s *Settings) SetPriceOffsetMode(mode pricing.OffsetMode) {
	s.PriceOffsetMode = mode
	if buy, sell, ok := pricing.OffsetsForMode(mode); ok {
		s.BuyPriceOffset = buy
		s.SellPriceOffset = sell
	}
}

// SetPointsFactor stores a clamped daily trade-count ceiling.
func (s *Settings) SetPointsFactor(n int) {
	s.PointsFactor = clampPointsSetting(n)
}

// SetPointsTarget stores a clamped daily point goal.
func (s *Settings) SetPointsTarget(n int) {
	s.PointsTarget = clampPointsSetting(n)
}

// SetTokenAddress validates and normalizes the target token address.
// Invalid input is rejected and the previous value retained.
func (s *Settings) SetTokenAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("invalid token address %q: missing 0x prefix", addr)
	}
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid token address %q", addr)
	}
	s.TokenAddress = strings.ToLower(common.HexToAddress(addr).Hex())
	return nil
}

// TradeCountCeiling is the maximum number of placements per day.
func (s Settings) TradeCountCeiling() int {
	return s.PointsFactor
}

func clampPointsSetting(n int) int {
	if n < MinPointsSetting {
		return MinPointsSetting
	}
	if n > MaxPointsSetting {
		return MaxPointsSetting
	}
	return n
}
