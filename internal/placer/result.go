package placer

// Outcome tags a placement result. Ordinary "nothing to do" conditions are
// outcomes, not errors; only structural page problems surface as errors.
type Outcome int

const (
	// OutcomePlaced means the paired order was submitted and confirmed.
	OutcomePlaced Outcome = iota
	// OutcomeSkipped means placement was not attempted (existing orders,
	// unverifiable state).
	OutcomeSkipped
	// OutcomeCooldown means a recent placement blocked this attempt.
	OutcomeCooldown
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePlaced:
		return "placed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Result describes one placement attempt.
type Result struct {
	Outcome Outcome

	// Reason explains Skipped/Cooldown outcomes.
	Reason string

	// BuyVolume is the notional committed to the buy order (the full
	// available balance, amount slider at 100%).
	BuyVolume float64

	// AvailableBalanceBeforeOrder is the balance snapshot taken before
	// submitting.
	AvailableBalanceBeforeOrder float64
}
