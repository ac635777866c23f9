package market

import (
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// StrikeTolerance 是模糊匹配允许的最大行权价偏差（不含边界）。
var StrikeTolerance = decimal.RequireFromString("0.05")

// Match 描述一次查找结果。
type Match struct {
	Quote Quote
	Fuzzy bool
}

// Lookup 先精确匹配 (strike, kind)，否则线性扫描同方向最近的行权价。
func Lookup(chain Chain, strike decimal.Decimal, kind watch.Kind) (Match, bool) {
	if len(chain) == 0 {
		return Match{}, false
	}
	if q, ok := chain[KeyOf(strike, kind)]; ok {
		return Match{Quote: q}, true
	}
	var (
		best     Quote
		bestDiff decimal.Decimal
		found    bool
	)
	for key, q := range chain {
		if key.Kind != kind {
			continue
		}
		diff := q.Strike.Sub(strike).Abs()
		if diff.GreaterThanOrEqual(StrikeTolerance) {
			continue
		}
		// 等距时取较小行权价，保证 map 遍历顺序不影响结果
		if !found || diff.LessThan(bestDiff) || (diff.Equal(bestDiff) && q.Strike.LessThan(best.Strike)) {
			best, bestDiff, found = q, diff, true
		}
	}
	if !found {
		return Match{}, false
	}
	return Match{Quote: best, Fuzzy: true}, true
}
