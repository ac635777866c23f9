package monitor

import (
	"optwatch/internal/caption"
	"optwatch/internal/watch"
)

type decision uint8

const (
	skip decision = iota
	notify
	// seed 只记录当前价为已通知价，不推送
	seed
)

func (d decision) String() string {
	switch d {
	case notify:
		return "notify"
	case seed:
		return "seed"
	default:
		return "skip"
	}
}

type policy func(w watch.Watch, o observation) decision

var policies = [...]policy{
	watch.ModeAlways:   decideAlways,
	watch.ModePeaks:    decidePeaks,
	watch.ModeWait:     decideWait,
	watch.ModeWaitDown: decideWaitDown,
	watch.ModeEnter:    decideEnter,
}

func decide(w watch.Watch, o observation) decision {
	if !w.Mode.Valid() {
		return decideAlways(w, o)
	}
	return policies[w.Mode](w, o)
}

// always: 本进程首次见到时只记录（即使库里已有已通知价），之后仅在价格严格上涨时推送。
func decideAlways(_ watch.Watch, o observation) decision {
	if o.firstSighting || !o.notified {
		return seed
	}
	if o.price.GreaterThan(o.last) {
		return notify
	}
	return skip
}

// peaks: initial 只在没有任何已知峰值时成立；重启后加载到峰值则等待新高。
func decidePeaks(_ watch.Watch, o observation) decision {
	if o.newPeak || o.initial {
		return notify
	}
	return skip
}

func decideWait(w watch.Watch, o observation) decision {
	if !w.TargetPrice.Valid || !w.TargetPrice.Decimal.IsPositive() {
		return skip
	}
	if o.price.LessThan(w.TargetPrice.Decimal) {
		return skip
	}
	if !o.notified || o.price.GreaterThan(o.last) {
		return notify
	}
	return skip
}

func decideWaitDown(w watch.Watch, o observation) decision {
	if !w.TargetPrice.Valid || !w.TargetPrice.Decimal.IsPositive() {
		return skip
	}
	if o.price.GreaterThan(w.TargetPrice.Decimal) {
		return skip
	}
	if !o.notified || o.price.LessThan(o.last) {
		return notify
	}
	return skip
}

func decideEnter(w watch.Watch, o observation) decision {
	if !w.EntryPrice.Valid || !w.EntryPrice.Decimal.IsPositive() {
		return skip
	}
	if o.price.LessThan(w.EntryPrice.Decimal) {
		return skip
	}
	if !o.notified || o.price.GreaterThan(o.last) {
		return notify
	}
	return skip
}

// captionFor 选择文案：各模式首次推送用专属模板，其余用 update。
func captionFor(mode watch.Mode, first bool) caption.Name {
	if !first {
		return caption.Update
	}
	switch mode {
	case watch.ModeEnter:
		return caption.EnterFirst
	case watch.ModeWait, watch.ModeWaitDown:
		return caption.WaitFirst
	case watch.ModeAlways:
		return caption.SelectFirst
	default:
		return caption.Update
	}
}
