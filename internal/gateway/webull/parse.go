package webull

import (
	"fmt"

	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// parseChain 接受裸数组或 {"data": [...]} 两种响应。
func parseChain(body []byte) (market.Chain, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("webull 响应不是合法 JSON")
	}
	root := gjson.ParseBytes(body)
	rows := root
	if !root.IsArray() {
		rows = root.Get("data")
	}
	if !rows.IsArray() {
		return nil, fmt.Errorf("webull 响应缺少期权链数组")
	}
	chain := make(market.Chain)
	rows.ForEach(func(_, row gjson.Result) bool {
		strike, err := decimal.NewFromString(row.Get("strikePrice").String())
		if err != nil || !strike.IsPositive() {
			return true
		}
		if call := row.Get("call"); call.IsObject() {
			chain.Put(parseQuote(call, strike, watch.Call))
		}
		if put := row.Get("put"); put.IsObject() {
			chain.Put(parseQuote(put, strike, watch.Put))
		}
		return true
	})
	return chain, nil
}

func parseQuote(r gjson.Result, strike decimal.Decimal, kind watch.Kind) market.Quote {
	last := r.Get("close")
	if !last.Exists() || last.Float() == 0 {
		last = r.Get("price")
	}
	return market.Quote{
		Strike:            strike,
		Kind:              kind,
		Bid:               num(r.Get("bidList.0.price")),
		Ask:               num(r.Get("askList.0.price")),
		Last:              num(last),
		Volume:            r.Get("volume").Int(),
		OpenInterest:      r.Get("openInterest").Int(),
		ImpliedVolatility: r.Get("impVol").Float(),
		ChangeAbs:         num(r.Get("change")),
		ChangePct:         r.Get("changeRatio").Float(),
		Underlying:        num(r.Get("underlyingPrice")),
		ContractSymbol:    r.Get("symbol").String(),
	}
}

// num 把缺失或非法的数值当作 0。
func num(r gjson.Result) decimal.Decimal {
	if !r.Exists() {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
