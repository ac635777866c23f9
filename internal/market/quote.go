// Package market 定义期权链报价及其匹配规则。
package market

import (
	"context"

	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// Quote 是单个合约在一次拉取中的报价快照，缺失字段保持零值。
type Quote struct {
	Strike            decimal.Decimal `json:"strike"`
	Kind              watch.Kind      `json:"-"`
	Bid               decimal.Decimal `json:"bid"`
	Ask               decimal.Decimal `json:"ask"`
	Last              decimal.Decimal `json:"last_price"`
	Volume            int64           `json:"volume"`
	OpenInterest      int64           `json:"open_interest"`
	ImpliedVolatility float64         `json:"implied_volatility"`
	ChangeAbs         decimal.Decimal `json:"change_abs"`
	ChangePct         float64         `json:"change_pct"`
	Underlying        decimal.Decimal `json:"underlying_price"`
	ContractSymbol    string          `json:"contract_symbol"`
}

// WorkingPrice 买卖价均为正时取中间价，否则取最新成交价，保留两位小数。
func (q Quote) WorkingPrice() decimal.Decimal {
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2)).Round(2)
	}
	return q.Last.Round(2)
}

// Key 以规范化行权价字符串 + 方向定位合约。
type Key struct {
	Strike string
	Kind   watch.Kind
}

func KeyOf(strike decimal.Decimal, kind watch.Kind) Key {
	return Key{Strike: strike.String(), Kind: kind}
}

// Chain 是同一 (symbol, expiration) 下的全部报价。
type Chain map[Key]Quote

// Put 按报价自身的行权价和方向写入。
func (c Chain) Put(q Quote) {
	c[KeyOf(q.Strike, q.Kind)] = q
}

// Gateway 是行情数据源；一次调用对应一个 (symbol, expiration) 分组。
type Gateway interface {
	FetchChain(ctx context.Context, symbol, expiration string) (Chain, error)
}
