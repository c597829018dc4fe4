package cache

import "strings"

// KeyPrefix namespaces order-book entries in shared backends.
const KeyPrefix = "orderbook"

// NormalizeSymbol folds a symbol to the casing the upstream expects.
//
// Example:
//
//	NormalizeSymbol(" btcirt ") == "BTCIRT"
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Key returns the storage key for a symbol.
// Format: orderbook:SYMBOL
func Key(symbol string) string {
	return KeyPrefix + ":" + NormalizeSymbol(symbol)
}
