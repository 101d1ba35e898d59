package quote

import "strings"

// DefaultExchange prefixes Colombo Stock Exchange symbols.
const DefaultExchange = "CSELK"

// SubjectFor qualifies a directory symbol with its exchange, e.g. "CSELK:HAYL.N0000".
func SubjectFor(exchange, symbol string) string {
	if exchange == "" || strings.Contains(symbol, ":") {
		return symbol
	}
	return exchange + ":" + symbol
}

// SymbolOf strips the exchange prefix from a subject identifier.
func SymbolOf(subject string) string {
	if i := strings.LastIndex(subject, ":"); i >= 0 {
		return subject[i+1:]
	}
	return subject
}
