package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardRenderer_Render(t *testing.T) {
	r := NewCardRenderer()
	snap := Snapshot{
		Watch: watch.Watch{
			Symbol:     "SPXW",
			Strike:     decimal.RequireFromString("5800"),
			Kind:       watch.Call,
			Expiration: "2030-01-18",
			Mode:       watch.ModeEnter,
			EntryPrice: decimal.NewNullDecimal(decimal.RequireFromString("4.2")),
		},
		Quote: market.Quote{
			Bid:       decimal.RequireFromString("4.2"),
			Ask:       decimal.RequireFromString("4.3"),
			ChangeAbs: decimal.RequireFromString("-0.35"),
			ChangePct: -7.6,
			Volume:    1200,
		},
		Price: decimal.RequireFromString("4.25"),
		At:    time.Date(2030, 1, 10, 15, 0, 0, 0, time.UTC),
	}
	raw, err := r.Render(snap)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 840, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}
