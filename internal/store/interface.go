package store

import (
	"context"
	"time"

	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// WatchStore 是监控命令的持久化接口，不做缓存，也不含业务逻辑。
type WatchStore interface {
	// CreateWatch 写入一条 active 状态的命令并返回存储分配的 id。
	CreateWatch(ctx context.Context, w watch.NewWatch) (int64, error)
	// GetWatch 在记录不存在时返回 ok=false 且 err=nil。
	GetWatch(ctx context.Context, id int64) (watch.Watch, bool, error)
	// ListActive 仅返回 status=active 的记录，按 id 升序。
	ListActive(ctx context.Context) ([]watch.Watch, error)
	// ListByOwner 返回某个会话的全部记录，按 id 升序。
	ListByOwner(ctx context.Context, ownerChatID int64) ([]watch.Watch, error)
	// SetStatus 仅当源状态合法时迁移，返回是否有行受影响。
	SetStatus(ctx context.Context, id int64, to watch.Status) (bool, error)
	// DeleteWatch 返回是否有行被删除。
	DeleteWatch(ctx context.Context, id int64) (bool, error)
	// UpdateTracking 写入跟踪字段；失败只记录日志。
	UpdateTracking(ctx context.Context, id int64, lastNotified, peak decimal.Decimal)
}

// LedgerEntry 是合约账本的开仓参数。
type LedgerEntry struct {
	Symbol     string
	Kind       watch.Kind
	Strike     decimal.Decimal
	Expiration string
	StartPrice decimal.Decimal
	Entry      *market.Quote
}

// LedgerRecord 是账本中的一行。
type LedgerRecord struct {
	ID            int64
	ContractDate  string
	StrikeLabel   string
	ContractPrice decimal.Decimal
	Profit        decimal.Decimal
	Loss          decimal.Decimal
	NetProfit     decimal.Decimal
	Closed        bool
	ExitAt        *time.Time
}

// Ledger 记录合约从创建到删除的表现。
type Ledger interface {
	OpenEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	// CloseEntry 在 closePrice 为 0 时跳过。
	CloseEntry(ctx context.Context, id int64, closePrice decimal.Decimal, exit *market.Quote) error
	GetEntry(ctx context.Context, id int64) (LedgerRecord, bool, error)
}

// Store 聚合监控命令表与账本表。
type Store interface {
	WatchStore
	Ledger
	Close() error
}
