// Package symbol parses trading pair notation. Operators write pairs as
// "BTC/USDT" or "BTCUSDT"; the exchange API wants the concatenated form.
package symbol

import "strings"

// quoteAssets recognized when splitting the concatenated form, longest
// match first.
var quoteAssets = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

type Symbol struct {
	Base  string
	Quote string
}

// Exchange returns the concatenated form used by the spot API ("BTCUSDT").
func (s Symbol) Exchange() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Display returns the slash form used in logs and config ("BTC/USDT").
func (s Symbol) Display() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse accepts either notation, case-insensitively. Exchange-suffixed
// forms like "BTC/USDT:USDT" lose the suffix. An unparseable input
// yields the zero Symbol.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Exchange normalizes any accepted notation to the concatenated form.
// Inputs with an unknown quote asset pass through uppercased and
// slash-stripped rather than being dropped.
func Exchange(s string) string {
	if sym := Parse(s); sym.Exchange() != "" {
		return sym.Exchange()
	}
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
}

// DedupeList normalizes a configured pair list to exchange form,
// dropping blanks and duplicates while preserving order.
func DedupeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Exchange(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// IsValid reports whether the pair parses into a known base and quote.
func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
