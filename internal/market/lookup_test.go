package market

import (
	"testing"

	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func chainOf(quotes ...Quote) Chain {
	c := make(Chain)
	for _, q := range quotes {
		c.Put(q)
	}
	return c
}

func TestLookup_Exact(t *testing.T) {
	c := chainOf(
		Quote{Strike: d("5000"), Kind: watch.Call, Last: d("1.10")},
		Quote{Strike: d("5000"), Kind: watch.Put, Last: d("2.20")},
	)
	m, ok := Lookup(c, d("5000.0"), watch.Put)
	require.True(t, ok)
	assert.False(t, m.Fuzzy)
	assert.True(t, m.Quote.Last.Equal(d("2.20")))
}

func TestLookup_FuzzyWithinTolerance(t *testing.T) {
	c := chainOf(
		Quote{Strike: d("100.03"), Kind: watch.Call, Last: d("3")},
		Quote{Strike: d("100"), Kind: watch.Put, Last: d("9")},
	)
	m, ok := Lookup(c, d("100"), watch.Call)
	require.True(t, ok)
	assert.True(t, m.Fuzzy)
	assert.True(t, m.Quote.Strike.Equal(d("100.03")))
}

func TestLookup_PicksNearest(t *testing.T) {
	c := chainOf(
		Quote{Strike: d("100.04"), Kind: watch.Call},
		Quote{Strike: d("99.98"), Kind: watch.Call},
	)
	m, ok := Lookup(c, d("100"), watch.Call)
	require.True(t, ok)
	assert.True(t, m.Quote.Strike.Equal(d("99.98")))
}

func TestLookup_OutsideTolerance(t *testing.T) {
	c := chainOf(
		Quote{Strike: d("100.10"), Kind: watch.Call},
		Quote{Strike: d("100.05"), Kind: watch.Call},
		Quote{Strike: d("100.01"), Kind: watch.Put},
	)
	_, ok := Lookup(c, d("100"), watch.Call)
	assert.False(t, ok)
	_, ok = Lookup(nil, d("100"), watch.Call)
	assert.False(t, ok)
}

func TestWorkingPrice(t *testing.T) {
	assert.Equal(t, "4.05", Quote{Bid: d("4.00"), Ask: d("4.10"), Last: d("3")}.WorkingPrice().StringFixed(2))
	assert.Equal(t, "3.33", Quote{Bid: d("0"), Ask: d("4.10"), Last: d("3.333")}.WorkingPrice().StringFixed(2))
	assert.Equal(t, "1.01", Quote{Bid: d("1.005"), Ask: d("1.01"), Last: d("9")}.WorkingPrice().StringFixed(2))
}
