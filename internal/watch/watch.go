// Package watch 定义监控命令（Watch）的领域模型。
package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind 是期权方向：Call 或 Put。
type Kind byte

const (
	Call Kind = 'C'
	Put  Kind = 'P'
)

func (k Kind) String() string {
	switch k {
	case Call, Put:
		return string(k)
	default:
		return ""
	}
}

func (k Kind) Valid() bool { return k == Call || k == Put }

// ParseKind 接受 C/P/CALL/PUT（大小写不敏感）。
func ParseKind(raw string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "C", "CALL":
		return Call, nil
	case "P", "PUT":
		return Put, nil
	default:
		return 0, fmt.Errorf("unknown contract kind %q", raw)
	}
}

// Status 是监控命令的生命周期状态。
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusExpired:
		return true
	}
	return false
}

// AllowedFrom 返回迁移到 s 时允许的源状态。
// active<->paused 由用户驱动，active->expired 由引擎驱动且不可逆。
func (s Status) AllowedFrom() []Status {
	switch s {
	case StatusPaused:
		return []Status{StatusActive}
	case StatusActive:
		return []Status{StatusPaused}
	case StatusExpired:
		return []Status{StatusActive}
	}
	return nil
}

// DateLayout 是到期日的规范格式。
const DateLayout = "2006-01-02"

var expirationLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"20060102",
}

// ParseExpiration 将到期日字符串解析为当天零点（UTC）。
func ParseExpiration(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("expiration is empty")
	}
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable expiration %q", raw)
}

// Watch 是一条持久化的监控命令。
type Watch struct {
	ID          int64
	OwnerChatID int64
	Symbol      string
	Strike      decimal.Decimal
	Kind        Kind
	Expiration  string
	TargetPrice decimal.NullDecimal
	EntryPrice  decimal.NullDecimal
	Mode        Mode
	Status      Status

	LastNotifiedPrice decimal.Decimal
	PeakPrice         decimal.Decimal

	LedgerID   *int64
	ContractID string
	CreatedAt  time.Time
}

// ExpirationDate 解析到期日；格式异常时返回错误而不是零值。
func (w Watch) ExpirationDate() (time.Time, error) {
	return ParseExpiration(w.Expiration)
}

// Label 形如 "SPXW 5000 C"，用于日志与账本。
func (w Watch) Label() string {
	return fmt.Sprintf("%s %s %s", w.Symbol, w.Strike.String(), w.Kind)
}

// NewWatch 描述一次创建请求（ID 由存储分配）。
type NewWatch struct {
	OwnerChatID int64
	Symbol      string
	Strike      decimal.Decimal
	Kind        Kind
	Expiration  string
	TargetPrice decimal.NullDecimal
	EntryPrice  decimal.NullDecimal
	Mode        Mode
	LedgerID    *int64
	ContractID  string
}
