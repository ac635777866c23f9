package scheduler

import (
	"context"
	"time"

	"optwatch/internal/logger"
)

// SleepFunc 睡眠 d，ctx 结束时提前返回 false。
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Sleep 是默认的 SleepFunc。
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// FixedDelayScheduler 每次任务完成后再等待 Interval，任务之间不会重叠。
type FixedDelayScheduler struct {
	Name     string
	Interval time.Duration

	ctx     context.Context
	sleepFn SleepFunc
	nowFn   func() time.Time
}

func NewFixedDelayScheduler(ctx context.Context, name string, interval time.Duration) *FixedDelayScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &FixedDelayScheduler{
		Name:     name,
		Interval: interval,
		ctx:      ctx,
		sleepFn:  Sleep,
		nowFn:    time.Now,
	}
}

// WithSleep 替换睡眠实现（测试用）。
func (s *FixedDelayScheduler) WithSleep(fn SleepFunc) *FixedDelayScheduler {
	if fn != nil {
		s.sleepFn = fn
	}
	return s
}

// Start 阻塞运行直到 ctx 结束；取消只在任务之间或睡眠期间生效。
func (s *FixedDelayScheduler) Start(task func(ctx context.Context)) {
	if s == nil {
		return
	}
	prefix := "FixedDelayScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.sleepFn == nil {
		s.sleepFn = Sleep
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	logger.Infof("%s: started interval=%s", prefix, s.Interval)

	for runs := 1; ; runs++ {
		if s.ctx.Err() != nil {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
		began := s.nowFn()
		task(s.ctx)
		logger.Debugf("%s: run #%d took %s", prefix, runs, s.nowFn().Sub(began).Truncate(time.Millisecond))
		if !s.sleepFn(s.ctx, s.Interval) {
			logger.Infof("%s: ctx done, exit", prefix)
			return
		}
	}
}
