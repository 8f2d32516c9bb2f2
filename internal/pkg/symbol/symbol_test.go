package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btc/usdt", "BTC", "USDT"},
		{"BTCUSDT", "BTC", "USDT"},
		{"ETH/USDT:USDT", "ETH", "USDT"},
		{"SOLBNB", "SOL", "BNB"},
		{"  DOGE/USDC ", "DOGE", "USDC"},
		{"USDT", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		assert.Equal(t, tc.base, got.Base, "input %q", tc.in)
		assert.Equal(t, tc.quote, got.Quote, "input %q", tc.in)
	}
}

func TestExchangeFallsBackOnUnknownQuote(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Exchange("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Exchange("BTCUSDT"))
	// Unknown quote asset still produces a usable API symbol.
	assert.Equal(t, "ABCXYZ", Exchange("abc/xyz"))
	assert.Equal(t, "", Exchange("  "))
}

func TestDedupeList(t *testing.T) {
	got := DedupeList([]string{"BTC/USDT", "btcusdt", "ETH/USDT", "", "eth/usdt"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
	assert.Nil(t, DedupeList(nil))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTC/USDT"))
	assert.True(t, IsValid("ethusdt"))
	assert.False(t, IsValid("USDT"))
	assert.False(t, IsValid(""))
}
