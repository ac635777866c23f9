package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchModel maps to 'monitoring_commands' table.
type WatchModel struct {
	ID                int64               `gorm:"column:id;primaryKey;autoIncrement"`
	ChatID            int64               `gorm:"column:chat_id;index"`
	Symbol            string              `gorm:"column:symbol;size:20"`
	Strike            decimal.Decimal     `gorm:"column:strike;type:decimal(14,4)"`
	ContractType      string              `gorm:"column:contract_type;size:1"`
	Expiration        string              `gorm:"column:expiration;size:32"`
	TargetPrice       decimal.NullDecimal `gorm:"column:target_price;type:decimal(14,4)"`
	EntryPrice        decimal.NullDecimal `gorm:"column:entry_price;type:decimal(14,4)"`
	Status            string              `gorm:"column:status;size:20;default:active;index"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	ContractID        string              `gorm:"column:contract_id"`
	NotificationMode  string              `gorm:"column:notification_mode;size:20;default:always"`
	PostgresID        *int64              `gorm:"column:postgres_id"`
	LastNotifiedPrice decimal.NullDecimal `gorm:"column:last_notified_price;type:decimal(14,4);default:0"`
	PeakPrice         decimal.NullDecimal `gorm:"column:peak_price;type:decimal(14,4);default:0"`
}

func (WatchModel) TableName() string { return "monitoring_commands" }
