package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"optwatch/internal/caption"
	"optwatch/internal/gateway/notifier"
	"optwatch/internal/market"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/render"
	"optwatch/internal/store/gormstore"
	"optwatch/internal/store/sqlite"
	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// 2026-01-20 10:00 America/New_York
var testNow = time.Date(2026, 1, 20, 15, 0, 0, 0, time.UTC)

const testExp = "2026-01-23"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

type chainResult struct {
	chain market.Chain
	err   error
}

// fakeGateway 按 (行情代码, expiration) 顺序返回脚本化结果，最后一个结果会重复使用。
type fakeGateway struct {
	mu      sync.Mutex
	scripts map[string][]chainResult
	calls   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{scripts: make(map[string][]chainResult)}
}

func (g *fakeGateway) script(sym, exp string, results ...chainResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := symbol.Canonical(sym) + "|" + exp
	g.scripts[key] = append(g.scripts[key], results...)
}

func (g *fakeGateway) FetchChain(_ context.Context, sym, exp string) (market.Chain, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := symbol.Canonical(sym) + "|" + exp
	g.calls = append(g.calls, key)
	q := g.scripts[key]
	if len(q) == 0 {
		return nil, fmt.Errorf("no script for %s", key)
	}
	r := q[0]
	if len(q) > 1 {
		g.scripts[key] = q[1:]
	}
	return r.chain, r.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func chainOf(quotes ...market.Quote) chainResult {
	c := make(market.Chain)
	for _, q := range quotes {
		c.Put(q)
	}
	return chainResult{chain: c}
}

func failed(msg string) chainResult { return chainResult{err: errors.New(msg)} }

func quote(strike string, kind watch.Kind, bid, ask string) market.Quote {
	return market.Quote{Strike: dec(strike), Kind: kind, Bid: dec(bid), Ask: dec(ask), Last: dec(bid)}
}

// mid 构造中间价恰为 price 的报价。
func mid(strike string, kind watch.Kind, price string) market.Quote {
	return quote(strike, kind, price, price)
}

type delivery struct {
	chats []int64
	photo notifier.Photo
	text  string
}

type recordingDispatcher struct {
	mu     sync.Mutex
	photos []delivery
	texts  []delivery
	err    error
}

func (d *recordingDispatcher) Deliver(_ context.Context, chats []int64, p notifier.Photo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.photos = append(d.photos, delivery{chats: chats, photo: p})
	return d.err
}

func (d *recordingDispatcher) SendText(_ context.Context, chats []int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, delivery{chats: chats, text: text})
	return d.err
}

func (d *recordingDispatcher) captions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.photos))
	for _, p := range d.photos {
		out = append(out, p.photo.Caption)
	}
	return out
}

// fakeCaptions 渲染为 "name symbol price"，便于断言模板选择。
type fakeCaptions struct{}

func (fakeCaptions) Render(name caption.Name, f caption.Fields) string {
	return fmt.Sprintf("%s %s %s", name, f.Symbol, f.Price)
}

type fakeRenderer struct {
	err     error
	panicOn string
}

func (r fakeRenderer) Render(s render.Snapshot) ([]byte, error) {
	if r.panicOn != "" && s.Watch.Symbol == r.panicOn {
		panic("renderer exploded")
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png:" + s.Price.StringFixed(2)), nil
}

type harness struct {
	t      *testing.T
	store  *gormstore.GormStore
	gw     *fakeGateway
	disp   *recordingDispatcher
	engine *Engine
	sleeps []time.Duration
}

func newHarness(t *testing.T, mutate ...func(*Options, *Deps)) *harness {
	t.Helper()
	st, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &harness{t: t, store: st, gw: newFakeGateway(), disp: &recordingDispatcher{}}
	opts := DefaultOptions()
	deps := Deps{
		Store:      st,
		Ledger:     st,
		Gateway:    h.gw,
		Dispatcher: h.disp,
		Captions:   fakeCaptions{},
		Renderer:   fakeRenderer{},
	}
	for _, fn := range mutate {
		fn(&opts, &deps)
	}
	e, err := NewEngine(deps, opts)
	require.NoError(t, err)
	e.nowFn = func() time.Time { return testNow }
	e.randFn = func() float64 { return 0.5 }
	e.sleepFn = func(_ context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return true
	}
	e.traceFn = func() string { return "trace" }
	h.engine = e
	return h
}

func (h *harness) create(nw watch.NewWatch) int64 {
	h.t.Helper()
	if nw.Expiration == "" {
		nw.Expiration = testExp
	}
	if nw.OwnerChatID == 0 {
		nw.OwnerChatID = 42
	}
	id, err := h.store.CreateWatch(context.Background(), nw)
	require.NoError(h.t, err)
	return id
}

func (h *harness) pass() PassReport {
	return h.engine.RunPass(context.Background())
}

func (h *harness) get(id int64) watch.Watch {
	h.t.Helper()
	w, found, err := h.store.GetWatch(context.Background(), id)
	require.NoError(h.t, err)
	require.True(h.t, found)
	return w
}
