package pricing

import (
	"regexp"
	"strconv"
	"strings"
)

// abbreviatedNumber matches exchange-formatted quantities like "1.5K" or
// "-2M" after separator stripping. Suffix is case-insensitive.
var abbreviatedNumber = regexp.MustCompile(`(?i)^(-?\d+(\.\d+)?)([KMB]?)$`)

// ParseAbbreviatedNumber parses a number as rendered by the exchange UI:
// optional comma/space thousands separators and an optional K/M/B suffix
// scaling by 1e3/1e6/1e9.
func ParseAbbreviatedNumber(s string) (value float64, ok bool) {
	cleaned := strings.NewReplacer(",", "", " ", "", " ", "").Replace(strings.TrimSpace(s))

	m := abbreviatedNumber.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToUpper(m[3]) {
	case "K":
		value *= 1e3
	case "M":
		value *= 1e6
	case "B":
		value *= 1e9
	}

	return value, true
}
