package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"optwatch/internal/caption"
	"optwatch/internal/gateway/notifier"
	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/render"
	"optwatch/internal/store"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// ErrNoQuote 表示期权链中找不到对应合约。
var ErrNoQuote = errors.New("no quote for contract")

// CreateRequest 是一次创建监控命令的请求；Expiration 为空时取当天。
type CreateRequest struct {
	OwnerChatID int64
	Symbol      string
	Strike      decimal.Decimal
	Kind        watch.Kind
	Expiration  string
	Mode        watch.Mode
	TargetPrice decimal.NullDecimal
	EntryPrice  decimal.NullDecimal
}

// CreateResult 携带创建时的报价（可能缺失）。
type CreateResult struct {
	Watch watch.Watch
	Price decimal.Decimal
	Quote *market.Quote
}

// Service 是命令层调用的入口：创建、暂停、恢复、删除、查询。
type Service struct {
	store      store.WatchStore
	ledger     store.Ledger
	gateway    market.Gateway
	dispatcher notifier.Dispatcher
	captions   Captions
	renderer   Renderer
	opts       Options
	nowFn      func() time.Time

	mu        sync.RWMutex
	onRemoved []func(id int64)
}

func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("monitor: store is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("monitor: gateway is required")
	}
	if deps.Captions == nil {
		return nil, fmt.Errorf("monitor: captions are required")
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = notifier.LogDispatcher{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		store:      deps.Store,
		ledger:     deps.Ledger,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		captions:   deps.Captions,
		renderer:   deps.Renderer,
		opts:       opts,
		nowFn:      time.Now,
	}, nil
}

// OnRemoved 注册删除回调，通常用于清理引擎内存状态。
func (s *Service) OnRemoved(fn func(id int64)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRemoved = append(s.onRemoved, fn)
}

func (s *Service) validate(req *CreateRequest) error {
	req.Symbol = symbol.Display(req.Symbol)
	if !symbol.IsValid(req.Symbol) {
		return watch.NewValidationError("symbol", "invalid symbol %q", req.Symbol)
	}
	if !req.Strike.IsPositive() {
		return watch.NewValidationError("strike", "must be positive")
	}
	if !req.Kind.Valid() {
		return watch.NewValidationError("kind", "must be C or P")
	}
	if !req.Mode.Valid() {
		return watch.NewValidationError("mode", "unknown mode")
	}
	if req.Mode.NeedsTarget() && (!req.TargetPrice.Valid || !req.TargetPrice.Decimal.IsPositive()) {
		return watch.NewValidationError("target_price", "required for mode %s", req.Mode)
	}
	if req.Mode.NeedsEntry() && (!req.EntryPrice.Valid || !req.EntryPrice.Decimal.IsPositive()) {
		return watch.NewValidationError("entry_price", "required for mode %s", req.Mode)
	}

	now := s.nowFn().In(s.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(req.Expiration) == "" {
		req.Expiration = today.Format(watch.DateLayout)
	}
	exp, err := watch.ParseExpiration(req.Expiration)
	if err != nil {
		return watch.NewValidationError("expiration", "%v", err)
	}
	if exp.Before(today) {
		return watch.NewValidationError("expiration", "%s is in the past", exp.Format(watch.DateLayout))
	}
	req.Expiration = exp.Format(watch.DateLayout)
	return nil
}

// CreateWatch 校验请求、取一次报价、开账本并持久化命令。
// wait 模式下若当前价已高于目标价，则改为 wait_down。
func (s *Service) CreateWatch(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if err := s.validate(&req); err != nil {
		return CreateResult{}, err
	}

	var res CreateResult
	match, err := s.quote(ctx, req.Symbol, req.Strike, req.Kind, req.Expiration)
	if err != nil {
		logger.Warnf("monitor: create %s %s %s quote unavailable: %v", req.Symbol, req.Strike, req.Kind, err)
	} else {
		q := match.Quote
		res.Quote = &q
		res.Price = q.WorkingPrice()
	}

	if req.Mode == watch.ModeWait && res.Quote != nil && res.Price.GreaterThan(req.TargetPrice.Decimal) {
		req.Mode = watch.ModeWaitDown
	}

	nw := watch.NewWatch{
		OwnerChatID: req.OwnerChatID,
		Symbol:      req.Symbol,
		Strike:      req.Strike,
		Kind:        req.Kind,
		Expiration:  req.Expiration,
		Mode:        req.Mode,
	}
	if req.Mode.NeedsTarget() {
		nw.TargetPrice = req.TargetPrice
	}
	if req.Mode.NeedsEntry() {
		nw.EntryPrice = req.EntryPrice
	}
	if res.Quote != nil {
		nw.ContractID = res.Quote.ContractSymbol
	}
	nw.LedgerID = s.openLedger(ctx, nw, res)

	id, err := s.store.CreateWatch(ctx, nw)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create watch: %w", err)
	}
	res.Watch = watch.Watch{
		ID:          id,
		OwnerChatID: nw.OwnerChatID,
		Symbol:      nw.Symbol,
		Strike:      nw.Strike,
		Kind:        nw.Kind,
		Expiration:  nw.Expiration,
		TargetPrice: nw.TargetPrice,
		EntryPrice:  nw.EntryPrice,
		Mode:        nw.Mode,
		Status:      watch.StatusActive,
		LedgerID:    nw.LedgerID,
		ContractID:  nw.ContractID,
		CreatedAt:   s.nowFn().UTC(),
	}
	logger.Infof("monitor: watch %d created %s %s mode=%s price=%s", id, res.Watch.Label(), res.Watch.Expiration, res.Watch.Mode, res.Price.StringFixed(2))

	s.announce(ctx, res)
	return res, nil
}

func (s *Service) openLedger(ctx context.Context, nw watch.NewWatch, res CreateResult) *int64 {
	if s.ledger == nil {
		return nil
	}
	id, err := s.ledger.OpenEntry(ctx, store.LedgerEntry{
		Symbol:     nw.Symbol,
		Kind:       nw.Kind,
		Strike:     nw.Strike,
		Expiration: nw.Expiration,
		StartPrice: res.Price,
		Entry:      res.Quote,
	})
	if err != nil {
		logger.Warnf("monitor: open ledger for %s %s %s failed: %v", nw.Symbol, nw.Strike, nw.Kind, err)
		return nil
	}
	return &id
}

// announce 只发往广播会话：always 发卡片，wait 类发文字，其余不发。
func (s *Service) announce(ctx context.Context, res CreateResult) {
	chats := s.opts.BroadcastChatIDs
	if len(chats) == 0 {
		return
	}
	w := res.Watch
	fields := caption.FieldsFor(w, res.Price)
	var err error
	switch w.Mode {
	case watch.ModeAlways:
		photo := notifier.Photo{
			Filename: fmt.Sprintf("%s_%d.png", w.Symbol, w.ID),
			Caption:  s.captions.Render(caption.SelectFirst, fields),
		}
		if s.opts.RenderImages && s.renderer != nil {
			var q market.Quote
			if res.Quote != nil {
				q = *res.Quote
			}
			img, rerr := s.renderer.Render(render.Snapshot{Watch: w, Quote: q, Price: res.Price, At: s.nowFn()})
			if rerr != nil {
				logger.Warnf("monitor: render announcement for watch %d failed: %v", w.ID, rerr)
			}
			photo.Image = img
		}
		err = s.dispatcher.Deliver(ctx, chats, photo)
	case watch.ModeWait, watch.ModeWaitDown:
		err = s.dispatcher.SendText(ctx, chats, s.captions.Render(caption.WaitAnnounce, fields))
	default:
		return
	}
	if err != nil {
		logger.Warnf("monitor: announce watch %d incomplete: %v", w.ID, err)
	}
}

func (s *Service) Pause(ctx context.Context, id int64) (bool, error) {
	return s.store.SetStatus(ctx, id, watch.StatusPaused)
}

func (s *Service) Resume(ctx context.Context, id int64) (bool, error) {
	return s.store.SetStatus(ctx, id, watch.StatusActive)
}

// Delete 尽力取一次退出价关闭账本，删除命令并向广播会话发送退出通知。
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	w, ok, err := s.store.GetWatch(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	price := decimal.Zero
	var exit *market.Quote
	if match, qerr := s.Quote(ctx, w.Symbol, w.Strike, w.Kind, w.Expiration); qerr == nil {
		q := match.Quote
		exit = &q
		price = q.WorkingPrice()
	} else {
		logger.Warnf("monitor: delete watch %d exit quote unavailable: %v", id, qerr)
	}

	if w.LedgerID != nil && s.ledger != nil {
		if err := s.ledger.CloseEntry(ctx, *w.LedgerID, price, exit); err != nil {
			logger.Warnf("monitor: close ledger %d for watch %d failed: %v", *w.LedgerID, id, err)
		}
	}

	deleted, err := s.store.DeleteWatch(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	logger.Infof("monitor: watch %d deleted exit=%s", id, price.StringFixed(2))

	s.mu.RLock()
	hooks := append([]func(int64){}, s.onRemoved...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}

	if chats := s.opts.BroadcastChatIDs; len(chats) > 0 {
		text := s.captions.Render(caption.ExitContract, caption.FieldsFor(w, price))
		if err := s.dispatcher.SendText(ctx, chats, text); err != nil {
			logger.Warnf("monitor: exit notice for watch %d incomplete: %v", id, err)
		}
	}
	return true, nil
}

func (s *Service) Get(ctx context.Context, id int64) (watch.Watch, bool, error) {
	return s.store.GetWatch(ctx, id)
}

func (s *Service) ListForOwner(ctx context.Context, owner int64) ([]watch.Watch, error) {
	return s.store.ListByOwner(ctx, owner)
}

// Quote 查询单个合约的当前报价。
func (s *Service) Quote(ctx context.Context, sym string, strike decimal.Decimal, kind watch.Kind, expiration string) (market.Match, error) {
	exp, err := watch.ParseExpiration(expiration)
	if err != nil {
		return market.Match{}, watch.NewValidationError("expiration", "%v", err)
	}
	return s.quote(ctx, symbol.Display(sym), strike, kind, exp.Format(watch.DateLayout))
}

func (s *Service) quote(ctx context.Context, sym string, strike decimal.Decimal, kind watch.Kind, expiration string) (market.Match, error) {
	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}
	chain, err := s.gateway.FetchChain(ctx, sym, expiration)
	if err != nil {
		return market.Match{}, err
	}
	m, ok := market.Lookup(chain, strike, kind)
	if !ok {
		return market.Match{}, ErrNoQuote
	}
	return m, nil
}
