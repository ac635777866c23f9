package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"optwatch/internal/logger"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (s *GormStore) CreateWatch(ctx context.Context, w watch.NewWatch) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	if !w.Kind.Valid() {
		return 0, fmt.Errorf("create watch: invalid kind %q", w.Kind)
	}
	if !w.Mode.Valid() {
		return 0, fmt.Errorf("create watch: invalid mode %d", w.Mode)
	}
	m := watchModel{
		ChatID:            w.OwnerChatID,
		Symbol:            symbol.Display(w.Symbol),
		Strike:            w.Strike,
		ContractType:      w.Kind.String(),
		Expiration:        strings.TrimSpace(w.Expiration),
		TargetPrice:       w.TargetPrice,
		EntryPrice:        w.EntryPrice,
		Status:            string(watch.StatusActive),
		ContractID:        w.ContractID,
		NotificationMode:  w.Mode.String(),
		PostgresID:        w.LedgerID,
		LastNotifiedPrice: decimal.NewNullDecimal(decimal.Zero),
		PeakPrice:         decimal.NewNullDecimal(decimal.Zero),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("create watch: %w", err)
	}
	return m.ID, nil
}

func (s *GormStore) GetWatch(ctx context.Context, id int64) (watch.Watch, bool, error) {
	if s == nil || s.db == nil {
		return watch.Watch{}, false, fmt.Errorf("gorm store 未初始化")
	}
	var m watchModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return watch.Watch{}, false, nil
	}
	if err != nil {
		return watch.Watch{}, false, err
	}
	return watchFromModel(m), true, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]watch.Watch, error) {
	return s.list(ctx, "status = ?", string(watch.StatusActive))
}

func (s *GormStore) ListByOwner(ctx context.Context, ownerChatID int64) ([]watch.Watch, error) {
	return s.list(ctx, "chat_id = ?", ownerChatID)
}

func (s *GormStore) list(ctx context.Context, query string, args ...any) ([]watch.Watch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var models []watchModel
	if err := s.db.WithContext(ctx).Where(query, args...).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]watch.Watch, 0, len(models))
	for _, m := range models {
		out = append(out, watchFromModel(m))
	}
	return out, nil
}

func (s *GormStore) SetStatus(ctx context.Context, id int64, to watch.Status) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("gorm store 未初始化")
	}
	from := to.AllowedFrom()
	if len(from) == 0 {
		return false, fmt.Errorf("set status: unsupported target %q", to)
	}
	allowed := make([]string, 0, len(from))
	for _, st := range from {
		allowed = append(allowed, string(st))
	}
	res := s.db.WithContext(ctx).Model(&watchModel{}).
		Where("id = ? AND status IN ?", id, allowed).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeleteWatch(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("gorm store 未初始化")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&watchModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) UpdateTracking(ctx context.Context, id int64, lastNotified, peak decimal.Decimal) {
	if s == nil || s.db == nil {
		return
	}
	res := s.db.WithContext(ctx).Model(&watchModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_notified_price": lastNotified,
			"peak_price":          peak,
		})
	if res.Error != nil {
		logger.Warnf("gorm store: update tracking failed id=%d last=%s peak=%s: %v", id, lastNotified, peak, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		logger.Debugf("gorm store: update tracking id=%d affected no rows", id)
	}
}

func watchFromModel(m watchModel) watch.Watch {
	kind, err := watch.ParseKind(m.ContractType)
	if err != nil {
		logger.Warnf("gorm store: watch id=%d has %v", m.ID, err)
	}
	mode, err := watch.ParseMode(m.NotificationMode)
	if err != nil {
		logger.Warnf("gorm store: watch id=%d has %v, fallback to always", m.ID, err)
		mode = watch.ModeAlways
	}
	w := watch.Watch{
		ID:          m.ID,
		OwnerChatID: m.ChatID,
		Symbol:      m.Symbol,
		Strike:      m.Strike,
		Kind:        kind,
		Expiration:  m.Expiration,
		TargetPrice: m.TargetPrice,
		EntryPrice:  m.EntryPrice,
		Mode:        mode,
		Status:      watch.Status(m.Status),
		LedgerID:    m.PostgresID,
		ContractID:  m.ContractID,
		CreatedAt:   m.CreatedAt,
	}
	if m.LastNotifiedPrice.Valid {
		w.LastNotifiedPrice = m.LastNotifiedPrice.Decimal
	}
	if m.PeakPrice.Valid {
		w.PeakPrice = m.PeakPrice.Decimal
	}
	return w
}
