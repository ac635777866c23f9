package monitor

import (
	"sync"

	"optwatch/internal/watch"

	"github.com/shopspring/decimal"
)

// tracker 保存引擎实例内的跟踪状态，首次见到某个 id 时从持久化字段懒加载。
type tracker struct {
	mu           sync.Mutex
	lastNotified map[int64]decimal.Decimal
	peak         map[int64]decimal.Decimal
}

func newTracker() *tracker {
	return &tracker{
		lastNotified: make(map[int64]decimal.Decimal),
		peak:         make(map[int64]decimal.Decimal),
	}
}

// observation 是一次报价在跟踪状态上的结果。
// firstSighting 表示本进程首次见到该 id，与是否从库里加载到历史值无关。
type observation struct {
	price         decimal.Decimal
	last          decimal.Decimal
	notified      bool
	peak          decimal.Decimal
	initial       bool
	newPeak       bool
	firstSighting bool
}

// seedPrice 取当前价与已加载的已通知价中较大者，重启后不会因价格回落再次推送。
func (o observation) seedPrice() decimal.Decimal {
	if o.notified && o.last.GreaterThan(o.price) {
		return o.last
	}
	return o.price
}

// observe 合并持久化值并更新峰值；峰值只增不减。
func (t *tracker) observe(w watch.Watch, price decimal.Decimal) observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, hasLast := t.lastNotified[w.ID]
	_, hasPeak := t.peak[w.ID]
	if !hasLast {
		if w.LastNotifiedPrice.IsPositive() {
			t.lastNotified[w.ID] = w.LastNotifiedPrice
		}
		if !hasPeak && w.PeakPrice.IsPositive() {
			t.peak[w.ID] = w.PeakPrice
		}
	}

	obs := observation{price: price, firstSighting: !hasLast && !hasPeak}
	peak, ok := t.peak[w.ID]
	if !ok {
		peak = price
		t.peak[w.ID] = price
		obs.initial = true
	}
	if price.GreaterThan(peak) {
		peak = price
		t.peak[w.ID] = price
		obs.newPeak = true
	}
	obs.peak = peak
	obs.last, obs.notified = t.lastNotified[w.ID]
	return obs
}

func (t *tracker) setLast(id int64, price decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastNotified[id] = price
}

func (t *tracker) forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastNotified, id)
	delete(t.peak, id)
}

// Tracking 是对外暴露的只读视图。
type Tracking struct {
	LastNotified decimal.Decimal
	Notified     bool
	Peak         decimal.Decimal
	Seen         bool
}

func (t *tracker) get(id int64) Tracking {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out Tracking
	out.LastNotified, out.Notified = t.lastNotified[id]
	out.Peak, out.Seen = t.peak[id]
	return out
}
