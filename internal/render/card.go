// Package render 生成合约状态卡片 PNG。
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"time"

	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/fogleman/gg"
	"github.com/shopspring/decimal"
	"golang.org/x/image/font/basicfont"
)

// Snapshot 是一张状态卡片的全部输入。
type Snapshot struct {
	Watch watch.Watch
	Quote market.Quote
	Price decimal.Decimal
	At    time.Time
}

// CardRenderer 使用内置位图字体绘制，不依赖字体文件。
type CardRenderer struct {
	Scale float64
}

func NewCardRenderer() *CardRenderer {
	return &CardRenderer{Scale: 2}
}

var (
	colorBg      = color.RGBA{R: 18, G: 22, B: 30, A: 255}
	colorPanel   = color.RGBA{R: 30, G: 36, B: 48, A: 255}
	colorLabel   = color.RGBA{R: 140, G: 150, B: 165, A: 255}
	colorText    = color.RGBA{R: 235, G: 238, B: 242, A: 255}
	colorUp      = color.RGBA{R: 38, G: 194, B: 129, A: 255}
	colorDown    = color.RGBA{R: 234, G: 57, B: 67, A: 255}
	colorNeutral = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

func trendColor(v decimal.Decimal) color.Color {
	switch v.Sign() {
	case 1:
		return colorUp
	case -1:
		return colorDown
	default:
		return colorNeutral
	}
}

// Render 返回 PNG 字节。
func (r *CardRenderer) Render(s Snapshot) ([]byte, error) {
	const (
		width   = 420
		height  = 300
		padding = 20
		rowH    = 22
		colW    = 190
	)
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	dc := gg.NewContext(int(width*scale), int(height*scale))
	dc.Scale(scale, scale)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorBg)
	dc.Clear()

	w, q := s.Watch, s.Quote
	kindLabel := "CALL"
	if w.Kind == watch.Put {
		kindLabel = "PUT"
	}
	headerColor := colorUp
	if w.Kind == watch.Put {
		headerColor = colorDown
	}

	y := float64(padding)
	dc.SetColor(headerColor)
	dc.DrawRectangle(0, 0, width, 4)
	dc.Fill()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(fmt.Sprintf("%s %s %s", w.Symbol, w.Strike.String(), kindLabel), padding, y, 0, 1)
	dc.SetColor(colorLabel)
	dc.DrawStringAnchored("EXP "+w.Expiration, width-padding, y, 1, 1)

	y += 34
	dc.Push()
	dc.ScaleAbout(2.2, 2.2, padding, y)
	dc.SetColor(colorText)
	dc.DrawStringAnchored("$"+s.Price.StringFixed(2), padding, y, 0, 0.5)
	dc.Pop()

	changeText := fmt.Sprintf("%s (%+.2f%%)", signed(q.ChangeAbs), q.ChangePct)
	dc.SetColor(trendColor(q.ChangeAbs))
	dc.DrawStringAnchored(changeText, width-padding, y, 1, 0.5)

	y += 30
	dc.SetColor(colorPanel)
	dc.DrawRoundedRectangle(padding/2, y-8, width-padding, rowH*5+12, 6)
	dc.Fill()

	rows := [][2]string{
		{"Bid", q.Bid.StringFixed(2)}, {"Ask", q.Ask.StringFixed(2)},
		{"Last", q.Last.StringFixed(2)}, {"Underlying", q.Underlying.StringFixed(2)},
		{"Volume", fmt.Sprintf("%d", q.Volume)}, {"Open Int", fmt.Sprintf("%d", q.OpenInterest)},
		{"IV", fmt.Sprintf("%.2f%%", q.ImpliedVolatility*100)}, {"Mode", w.Mode.String()},
		{"Entry", nullText(w.EntryPrice)}, {"Target", nullText(w.TargetPrice)},
	}
	for i, row := range rows {
		col := i % 2
		line := i / 2
		x := float64(padding + col*colW)
		ry := y + float64(line*rowH) + 6
		dc.SetColor(colorLabel)
		dc.DrawStringAnchored(row[0], x, ry, 0, 0.5)
		dc.SetColor(colorText)
		dc.DrawStringAnchored(row[1], x+colW-padding-10, ry, 1, 0.5)
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}
	dc.SetColor(colorLabel)
	footer := at.Format("2006-01-02 15:04:05 MST")
	if q.ContractSymbol != "" {
		footer = q.ContractSymbol + "  " + footer
	}
	dc.DrawStringAnchored(footer, padding, height-padding/2, 0, 0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func signed(v decimal.Decimal) string {
	if v.IsPositive() {
		return "+" + v.StringFixed(2)
	}
	return v.StringFixed(2)
}

func nullText(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.StringFixed(2)
}
