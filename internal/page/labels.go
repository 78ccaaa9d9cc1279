package page

import "strings"

// LabelSet holds the locale-dependent keywords used to classify open-order
// rows. The core never branches on locale itself; it only consumes whichever
// set the adapter was built with.
type LabelSet struct {
	Locale string
	Buy    []string
	Sell   []string
	Market []string
	Empty  string
}

// EnglishLabels matches the exchange's English UI.
var EnglishLabels = LabelSet{
	Locale: "en",
	Buy:    []string{"buy"},
	Sell:   []string{"sell"},
	Market: []string{"market"},
	Empty:  "You have no open orders",
}

// ChineseLabels matches the exchange's Simplified Chinese UI.
var ChineseLabels = LabelSet{
	Locale: "zh-CN",
	Buy:    []string{"买入", "买"},
	Sell:   []string{"卖出", "卖"},
	Market: []string{"市价"},
	Empty:  "无进行中的订单",
}

// SupportedLabels lists the label sets matched against row text.
var SupportedLabels = []LabelSet{EnglishLabels, ChineseLabels}

// ClassifyOrderRow derives the side of an open-order row from its text.
// Market orders are ignored entirely, as are rows without a digit (headers,
// placeholders). Matching is case-insensitive across both supported locales.
func ClassifyOrderRow(text string) (OrderSide, bool) {
	if !strings.ContainsAny(text, "0123456789") {
		return SideUnknown, false
	}

	lower := strings.ToLower(text)

	for _, set := range SupportedLabels {
		for _, kw := range set.Market {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return SideUnknown, false
			}
		}
	}

	for _, set := range SupportedLabels {
		for _, kw := range set.Sell {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return SideSell, true
			}
		}
	}

	for _, set := range SupportedLabels {
		for _, kw := range set.Buy {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return SideBuy, true
			}
		}
	}

	return SideUnknown, false
}
