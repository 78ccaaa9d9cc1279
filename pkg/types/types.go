package types

// TradeSample is a single row read from the exchange trade-history panel.
// Samples live for one evaluation cycle: they are scraped, folded into the
// VWAP reference price, and discarded.
type TradeSample struct {
	Time     string  `json:"time"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// TabInfo describes a connected page agent ("tab") known to the hub.
type TabInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// TaskMeta carries the measurable facts of one evaluation cycle, attached to
// a TASK_COMPLETE message.
type TaskMeta struct {
	AveragePrice                float64 `json:"averagePrice,omitempty"`
	TradeCount                  int     `json:"tradeCount,omitempty"`
	BuyVolumeDelta              float64 `json:"buyVolumeDelta,omitempty"`
	TokenSymbol                 string  `json:"tokenSymbol,omitempty"`
	AvailableBalanceBeforeOrder float64 `json:"availableBalanceBeforeOrder,omitempty"`
	CurrentBalance              float64 `json:"currentBalance,omitempty"`
}
