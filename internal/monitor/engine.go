// Package monitor 实现期权合约监控引擎与面向命令层的服务。
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"optwatch/internal/caption"
	"optwatch/internal/gateway/events"
	"optwatch/internal/gateway/notifier"
	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/render"
	"optwatch/internal/scheduler"
	"optwatch/internal/store"
	"optwatch/internal/watch"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Renderer 生成状态卡片图片。
type Renderer interface {
	Render(s render.Snapshot) ([]byte, error)
}

// Captions 渲染通知文案。
type Captions interface {
	Render(name caption.Name, f caption.Fields) string
}

// Options 控制轮询节奏。
type Options struct {
	Interval     time.Duration
	JitterMin    time.Duration
	JitterMax    time.Duration
	FetchTimeout time.Duration
	Location     *time.Location
	RenderImages bool
	// BroadcastChatIDs 为空时通知发给命令所属会话。
	BroadcastChatIDs []int64
}

// DefaultOptions 与默认配置保持一致。
func DefaultOptions() Options {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		Interval:     8 * time.Second,
		JitterMin:    time.Second,
		JitterMax:    3 * time.Second,
		FetchTimeout: 15 * time.Second,
		Location:     loc,
		RenderImages: true,
	}
}

// Deps 是引擎依赖的协作方。
type Deps struct {
	Store      store.WatchStore
	Ledger     store.Ledger
	Gateway    market.Gateway
	Dispatcher notifier.Dispatcher
	Captions   Captions
	Renderer   Renderer
	Events     events.Publisher
}

// Engine 单协程轮询全部 active 命令；两次轮询之间不会并发。
type Engine struct {
	store      store.WatchStore
	gateway    market.Gateway
	dispatcher notifier.Dispatcher
	captions   Captions
	renderer   Renderer
	events     events.Publisher
	opts       Options

	state *tracker

	nowFn   func() time.Time
	randFn  func() float64
	sleepFn scheduler.SleepFunc
	traceFn func() string
}

func NewEngine(deps Deps, opts Options) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("monitor: store is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("monitor: gateway is required")
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = notifier.LogDispatcher{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Captions == nil {
		return nil, fmt.Errorf("monitor: captions are required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.JitterMax < opts.JitterMin {
		opts.JitterMax = opts.JitterMin
	}
	return &Engine{
		store:      deps.Store,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		captions:   deps.Captions,
		renderer:   deps.Renderer,
		events:     deps.Events,
		opts:       opts,
		state:      newTracker(),
		nowFn:      time.Now,
		randFn:     rand.Float64,
		sleepFn:    scheduler.Sleep,
		traceFn:    uuid.NewString,
	}, nil
}

// Run 阻塞直到 ctx 结束。取消不会打断正在进行的一轮。
func (e *Engine) Run(ctx context.Context) error {
	logger.Infof("monitor: engine started interval=%s jitter=[%s,%s] fetch_timeout=%s tz=%s",
		e.opts.Interval, e.opts.JitterMin, e.opts.JitterMax, e.opts.FetchTimeout, e.opts.Location)
	scheduler.NewFixedDelayScheduler(ctx, "monitor", e.opts.Interval).
		WithSleep(e.sleepFn).
		Start(func(ctx context.Context) { e.RunPass(ctx) })
	logger.Infof("monitor: engine stopped")
	return nil
}

// Forget 丢弃某个命令的内存状态，命令删除后调用。
func (e *Engine) Forget(id int64) {
	e.state.forget(id)
}

// Tracking 返回某个命令当前的内存跟踪状态。
func (e *Engine) Tracking(id int64) Tracking {
	return e.state.get(id)
}

// PassReport 汇总一轮轮询。
type PassReport struct {
	TraceID      string
	Active       int
	Expired      int
	Invalid      int
	Groups       int
	FailedGroups int
	Unmatched    int
	Unpriced     int
	Failed       int
	Notified     int
}

type group struct {
	symbol     string
	expiration string
	watches    []watch.Watch
}

// RunPass 执行完整的一轮：过期检查、分组拉取、逐条判定。
func (e *Engine) RunPass(parent context.Context) PassReport {
	ctx := context.WithoutCancel(parent)
	report := PassReport{TraceID: e.traceFn()}

	active, err := e.store.ListActive(ctx)
	if err != nil {
		logger.Errorf("monitor[%s]: list active failed: %v", report.TraceID, err)
		return report
	}
	report.Active = len(active)
	if len(active) == 0 {
		return report
	}

	groups := e.partition(ctx, active, &report)
	report.Groups = len(groups)
	for _, g := range groups {
		e.runGroup(ctx, g, &report)
	}
	if report.Notified > 0 || report.Expired > 0 || report.FailedGroups > 0 {
		logger.Infof("monitor[%s]: active=%d expired=%d groups=%d failed_groups=%d unmatched=%d notified=%d",
			report.TraceID, report.Active, report.Expired, report.Groups, report.FailedGroups, report.Unmatched, report.Notified)
	}
	return report
}

// partition 处理过期并按 (行情代码, expiration) 分组，保持存储返回的顺序。
func (e *Engine) partition(ctx context.Context, active []watch.Watch, report *PassReport) []*group {
	today := e.today()
	var (
		order []*group
		index = make(map[[2]string]*group)
	)
	for _, w := range active {
		exp, err := w.ExpirationDate()
		if err != nil {
			report.Invalid++
			logger.Errorf("monitor[%s]: watch %d invalid expiration: %v", report.TraceID, w.ID, err)
			continue
		}
		if exp.Before(today) {
			report.Expired++
			logger.Infof("monitor[%s]: watch %d expired (%s)", report.TraceID, w.ID, w.Expiration)
			if _, err := e.store.SetStatus(ctx, w.ID, watch.StatusExpired); err != nil {
				logger.Errorf("monitor[%s]: expire watch %d failed: %v", report.TraceID, w.ID, err)
			}
			e.state.forget(w.ID)
			continue
		}
		// SPX 与 SPXW 共用一次拉取
		sym := symbol.Canonical(w.Symbol)
		key := [2]string{sym, w.Expiration}
		g, ok := index[key]
		if !ok {
			g = &group{symbol: sym, expiration: w.Expiration}
			index[key] = g
			order = append(order, g)
		}
		g.watches = append(g.watches, w)
	}
	return order
}

func (e *Engine) today() time.Time {
	now := e.nowFn().In(e.opts.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *Engine) jitter() time.Duration {
	span := e.opts.JitterMax - e.opts.JitterMin
	if span <= 0 {
		return e.opts.JitterMin
	}
	return e.opts.JitterMin + time.Duration(e.randFn()*float64(span))
}

func (e *Engine) runGroup(ctx context.Context, g *group, report *PassReport) {
	if d := e.jitter(); d > 0 {
		e.sleepFn(ctx, d)
	}
	chain, err := e.fetch(ctx, g.symbol, g.expiration)
	if err != nil {
		report.FailedGroups++
		logger.Errorf("monitor[%s]: fetch %s %s failed: %v", report.TraceID, g.symbol, g.expiration, err)
		return
	}
	if len(chain) == 0 {
		report.FailedGroups++
		logger.Warnf("monitor[%s]: empty chain for %s %s", report.TraceID, g.symbol, g.expiration)
		return
	}
	for _, w := range g.watches {
		e.processSafe(ctx, w, chain, report)
	}
}

func (e *Engine) fetch(ctx context.Context, sym, expiration string) (market.Chain, error) {
	if e.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.FetchTimeout)
		defer cancel()
	}
	return e.gateway.FetchChain(ctx, sym, expiration)
}

func (e *Engine) processSafe(ctx context.Context, w watch.Watch, chain market.Chain, report *PassReport) {
	defer func() {
		if r := recover(); r != nil {
			report.Failed++
			logger.Errorf("monitor[%s]: watch %d panic: %v\n%s", report.TraceID, w.ID, r, debug.Stack())
		}
	}()
	if err := e.process(ctx, w, chain, report); err != nil {
		report.Failed++
		logger.Errorf("monitor[%s]: watch %d failed: %v", report.TraceID, w.ID, err)
	}
}

func (e *Engine) process(ctx context.Context, w watch.Watch, chain market.Chain, report *PassReport) error {
	m, ok := market.Lookup(chain, w.Strike, w.Kind)
	if !ok {
		report.Unmatched++
		logger.Debugf("monitor[%s]: watch %d no quote for %s", report.TraceID, w.ID, w.Label())
		return nil
	}
	if m.Fuzzy {
		logger.Debugf("monitor[%s]: watch %d matched strike %s for %s", report.TraceID, w.ID, m.Quote.Strike, w.Strike)
	}
	price := m.Quote.WorkingPrice()
	if !price.IsPositive() {
		report.Unpriced++
		logger.Debugf("monitor[%s]: watch %d quote for %s has no bid/ask/last, skipped", report.TraceID, w.ID, w.Label())
		return nil
	}
	obs := e.state.observe(w, price)
	if logger.Enabled(slog.LevelDebug) {
		logger.Debugf("monitor[%s]: %s %s $%s chg=%.2f%% peak=%s", report.TraceID, w.Label(), w.Expiration, price.StringFixed(2), m.Quote.ChangePct, obs.peak.StringFixed(2))
	}

	if obs.newPeak {
		last := decimal.Zero
		if obs.notified {
			last = obs.last
		}
		e.store.UpdateTracking(ctx, w.ID, last, obs.peak)
	}

	switch decide(w, obs) {
	case seed:
		e.state.setLast(w.ID, obs.seedPrice())
		return nil
	case skip:
		return nil
	}

	first := !obs.notified
	e.state.setLast(w.ID, price)
	e.store.UpdateTracking(ctx, w.ID, price, obs.peak)

	name := captionFor(w.Mode, first)
	text := e.captions.Render(name, caption.FieldsFor(w, price))
	chats := e.targets(w)
	photo := notifier.Photo{
		Image:    e.snapshot(w, m.Quote, price),
		Filename: fmt.Sprintf("%s_%d.png", w.Symbol, w.ID),
		Caption:  text,
	}
	if err := e.dispatcher.Deliver(ctx, chats, photo); err != nil {
		logger.Warnf("monitor[%s]: watch %d delivery incomplete: %v", report.TraceID, w.ID, err)
	}
	report.Notified++
	logger.Infof("monitor[%s]: watch %d notified mode=%s caption=%s price=%s", report.TraceID, w.ID, w.Mode, name, price.StringFixed(2))

	evt := events.Notification{
		TraceID:     report.TraceID,
		WatchID:     w.ID,
		OwnerChatID: w.OwnerChatID,
		Symbol:      w.Symbol,
		Strike:      w.Strike.String(),
		Kind:        w.Kind.String(),
		Expiration:  w.Expiration,
		Mode:        w.Mode.String(),
		Caption:     string(name),
		Price:       price.StringFixed(2),
		Peak:        obs.peak.StringFixed(2),
		Chats:       chats,
		FiredAt:     e.nowFn().UTC(),
	}
	if err := e.events.Publish(ctx, evt); err != nil {
		logger.Warnf("monitor[%s]: publish event for watch %d failed: %v", report.TraceID, w.ID, err)
	}
	return nil
}

// snapshot 渲染失败时返回 nil，投递退化为纯文本。
func (e *Engine) snapshot(w watch.Watch, q market.Quote, price decimal.Decimal) []byte {
	if !e.opts.RenderImages || e.renderer == nil {
		return nil
	}
	img, err := e.renderer.Render(render.Snapshot{Watch: w, Quote: q, Price: price, At: e.nowFn()})
	if err != nil {
		logger.Warnf("monitor: render watch %d failed: %v", w.ID, err)
		return nil
	}
	return img
}

func (e *Engine) targets(w watch.Watch) []int64 {
	return targetChats(e.opts.BroadcastChatIDs, w.OwnerChatID)
}

func targetChats(broadcast []int64, owner int64) []int64 {
	if len(broadcast) > 0 {
		out := make([]int64, len(broadcast))
		copy(out, broadcast)
		return out
	}
	return []int64{owner}
}
