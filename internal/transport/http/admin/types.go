package adminhttp

import (
	"time"

	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

type createWatchRequest struct {
	OwnerChatID int64               `json:"owner_chat_id" binding:"required"`
	Symbol      string              `json:"symbol" binding:"required"`
	Strike      decimal.Decimal     `json:"strike"`
	Kind        string              `json:"kind" binding:"required"`
	Expiration  string              `json:"expiration"`
	Mode        string              `json:"mode"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	EntryPrice  decimal.NullDecimal `json:"entry_price"`
}

type watchView struct {
	ID                int64     `json:"id"`
	OwnerChatID       int64     `json:"owner_chat_id"`
	Symbol            string    `json:"symbol"`
	Strike            string    `json:"strike"`
	Kind              string    `json:"kind"`
	Expiration        string    `json:"expiration"`
	TargetPrice       *string   `json:"target_price,omitempty"`
	EntryPrice        *string   `json:"entry_price,omitempty"`
	Mode              string    `json:"mode"`
	Status            string    `json:"status"`
	LastNotifiedPrice string    `json:"last_notified_price"`
	PeakPrice         string    `json:"peak_price"`
	LedgerID          *int64    `json:"ledger_id,omitempty"`
	ContractID        string    `json:"contract_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func viewOf(w watch.Watch) watchView {
	return watchView{
		ID:                w.ID,
		OwnerChatID:       w.OwnerChatID,
		Symbol:            w.Symbol,
		Strike:            w.Strike.String(),
		Kind:              w.Kind.String(),
		Expiration:        w.Expiration,
		TargetPrice:       nullString(w.TargetPrice),
		EntryPrice:        nullString(w.EntryPrice),
		Mode:              w.Mode.String(),
		Status:            string(w.Status),
		LastNotifiedPrice: w.LastNotifiedPrice.StringFixed(2),
		PeakPrice:         w.PeakPrice.StringFixed(2),
		LedgerID:          w.LedgerID,
		ContractID:        w.ContractID,
		CreatedAt:         w.CreatedAt,
	}
}

func nullString(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := v.Decimal.StringFixed(2)
	return &s
}

type quoteView struct {
	market.Quote
	Kind         string `json:"kind"`
	WorkingPrice string `json:"working_price"`
	Fuzzy        bool   `json:"fuzzy"`
}
