package market

import (
	"strings"
	"unicode"
)

// DefaultSymbol is used when no symbol can be detected.
const DefaultSymbol = "EURUSD"

// CommonSymbols are warmed up ahead of an analysis request.
var CommonSymbols = []string{"EURUSD", "GBPUSD", "USDJPY", "BTCUSD"}

var knownPairs = []string{"eurusd", "gbpusd", "usdjpy", "audusd", "usdcad", "usdchf", "nzdusd"}

// NormalizeSymbol upper-cases a ticker and strips pair separators so that
// "eur/usd", "EUR_USD" and "EURUSD" compare equal.
func NormalizeSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '_', '-', ' ':
			return -1
		}
		return unicode.ToUpper(r)
	}, strings.TrimSpace(symbol))
}

// SplitPair splits a six letter currency pair into its components.
func SplitPair(symbol string) (base, quote string, ok bool) {
	s := NormalizeSymbol(symbol)
	if len(s) != 6 {
		return "", "", false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", "", false
		}
	}
	return s[:3], s[3:], true
}

// DetectSymbol picks a known FX pair out of a chart page URL.
func DetectSymbol(url string) string {
	lower := strings.ToLower(url)
	for _, pair := range knownPairs {
		if strings.Contains(lower, pair) {
			return strings.ToUpper(pair)
		}
	}
	return DefaultSymbol
}
