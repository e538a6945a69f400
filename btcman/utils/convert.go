package utils

import (
	"fmt"
	"strings"
)

// BTC and ZEC both split the coin into 1e8 base units, so one helper
// serves both sides of the bridge.
const UnitsPerCoin = 100000000

// FormatBaseUnits renders base units as a decimal coin string without
// going through a float, e.g. 150000000 -> "1.5".
func FormatBaseUnits(units int64) string {
	neg := units < 0
	if neg {
		units = -units
	}
	s := fmt.Sprintf("%d", units/UnitsPerCoin)
	if frac := units % UnitsPerCoin; frac != 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}
