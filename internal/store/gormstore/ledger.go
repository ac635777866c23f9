package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/store"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StrikeLabel 形如 "CRWD 477.5 P"。
func StrikeLabel(sym string, strike decimal.Decimal, kind watch.Kind) string {
	return fmt.Sprintf("%s %s %s", symbol.Display(sym), strike.Round(2).String(), kind)
}

func (s *GormStore) OpenEntry(ctx context.Context, entry store.LedgerEntry) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	m := contractLogModel{
		ContractDate:   entry.Expiration,
		Strike:         StrikeLabel(entry.Symbol, entry.Strike, entry.Kind),
		ContractPrice:  entry.StartPrice.Round(2),
		Profit:         decimal.Zero,
		Loss:           decimal.Zero,
		NetProfit:      decimal.Zero,
		EntryTimestamp: time.Now().UTC(),
	}
	if q := entry.Entry; q != nil {
		m.EntryBid = decimal.NewNullDecimal(q.Bid)
		m.EntryAsk = decimal.NewNullDecimal(q.Ask)
		m.EntryUnderlying = decimal.NewNullDecimal(q.Underlying)
		m.EntryVolume = &q.Volume
		m.EntryOI = &q.OpenInterest
		m.EntryIV = &q.ImpliedVolatility
		m.EntryQuote = quoteJSON(q)
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("open ledger entry: %w", err)
	}
	return m.ID, nil
}

// CloseEntry 写入平仓价：收盘价 >= 合约价记为 profit，否则记为 loss，net 为两者之差。
func (s *GormStore) CloseEntry(ctx context.Context, id int64, closePrice decimal.Decimal, exit *market.Quote) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	if closePrice.IsZero() {
		logger.Debugf("gorm store: skip closing ledger id=%d, close price is 0", id)
		return nil
	}
	var m contractLogModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("close ledger entry %d: %w", id, watch.ErrNotFound)
	}
	if err != nil {
		return err
	}
	profit, loss := decimal.Zero, decimal.Zero
	if closePrice.GreaterThanOrEqual(m.ContractPrice) {
		profit = closePrice
	} else {
		loss = closePrice
	}
	updates := map[string]any{
		"profit":         profit,
		"loss":           loss,
		"net_profit":     closePrice.Sub(m.ContractPrice).Round(2),
		"exit_timestamp": time.Now().UTC(),
	}
	if exit != nil {
		updates["exit_bid"] = exit.Bid
		updates["exit_ask"] = exit.Ask
		updates["exit_underlying"] = exit.Underlying
		updates["exit_volume"] = exit.Volume
		updates["exit_oi"] = exit.OpenInterest
		updates["exit_iv"] = exit.ImpliedVolatility
		updates["exit_quote"] = quoteJSON(exit)
	}
	return s.db.WithContext(ctx).Model(&contractLogModel{}).Where("id = ?", id).Updates(updates).Error
}

func (s *GormStore) GetEntry(ctx context.Context, id int64) (store.LedgerRecord, bool, error) {
	if s == nil || s.db == nil {
		return store.LedgerRecord{}, false, fmt.Errorf("gorm store 未初始化")
	}
	var m contractLogModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.LedgerRecord{}, false, nil
	}
	if err != nil {
		return store.LedgerRecord{}, false, err
	}
	return store.LedgerRecord{
		ID:            m.ID,
		ContractDate:  m.ContractDate,
		StrikeLabel:   m.Strike,
		ContractPrice: m.ContractPrice,
		Profit:        m.Profit,
		Loss:          m.Loss,
		NetProfit:     m.NetProfit,
		Closed:        m.ExitTimestamp != nil,
		ExitAt:        m.ExitTimestamp,
	}, true, nil
}

func quoteJSON(q *market.Quote) datatypes.JSON {
	raw, err := json.Marshal(q)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
