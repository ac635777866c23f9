package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ContractLogModel maps to 'option_contracts' table.
type ContractLogModel struct {
	ID              int64               `gorm:"column:id;primaryKey;autoIncrement"`
	ContractDate    string              `gorm:"column:contract_date;size:32"`
	Strike          string              `gorm:"column:strike;size:64"`
	ContractPrice   decimal.Decimal     `gorm:"column:contract_price;type:decimal(14,2)"`
	Profit          decimal.Decimal     `gorm:"column:profit;type:decimal(14,2)"`
	Loss            decimal.Decimal     `gorm:"column:loss;type:decimal(14,2)"`
	NetProfit       decimal.Decimal     `gorm:"column:net_profit;type:decimal(14,2)"`
	EntryBid        decimal.NullDecimal `gorm:"column:entry_bid;type:decimal(14,4)"`
	EntryAsk        decimal.NullDecimal `gorm:"column:entry_ask;type:decimal(14,4)"`
	EntryUnderlying decimal.NullDecimal `gorm:"column:entry_underlying;type:decimal(14,4)"`
	EntryVolume     *int64              `gorm:"column:entry_volume"`
	EntryOI         *int64              `gorm:"column:entry_oi"`
	EntryIV         *float64            `gorm:"column:entry_iv"`
	EntryQuote      datatypes.JSON      `gorm:"column:entry_quote"`
	EntryTimestamp  time.Time           `gorm:"column:entry_timestamp"`
	ExitBid         decimal.NullDecimal `gorm:"column:exit_bid;type:decimal(14,4)"`
	ExitAsk         decimal.NullDecimal `gorm:"column:exit_ask;type:decimal(14,4)"`
	ExitUnderlying  decimal.NullDecimal `gorm:"column:exit_underlying;type:decimal(14,4)"`
	ExitVolume      *int64              `gorm:"column:exit_volume"`
	ExitOI          *int64              `gorm:"column:exit_oi"`
	ExitIV          *float64            `gorm:"column:exit_iv"`
	ExitQuote       datatypes.JSON      `gorm:"column:exit_quote"`
	ExitTimestamp   *time.Time          `gorm:"column:exit_timestamp"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (ContractLogModel) TableName() string { return "option_contracts" }
