package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"optwatch/internal/gateway/events"
	"optwatch/internal/market"
	"optwatch/internal/watch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_AlwaysSuppressesFirstSighting(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModeAlways})
	h.gw.script("AAPL", testExp,
		chainOf(mid("150", watch.Call, "9.00")),
		chainOf(mid("150", watch.Call, "9.00")),
		chainOf(mid("150", watch.Call, "9.40")),
		chainOf(mid("150", watch.Call, "9.10")),
		chainOf(mid("150", watch.Call, "9.41")),
	)

	r := h.pass()
	assert.Equal(t, 0, r.Notified)
	assert.Empty(t, h.disp.photos)
	tr := h.engine.Tracking(id)
	assert.True(t, tr.Notified)
	assert.Equal(t, "9", tr.LastNotified.String())
	// 首次只在内存中记录，不落库
	assert.True(t, h.get(id).LastNotifiedPrice.IsZero())

	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)
	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)

	assert.Equal(t, []string{"update AAPL 9.40", "update AAPL 9.41"}, h.disp.captions())
	w := h.get(id)
	assert.Equal(t, "9.41", w.LastNotifiedPrice.String())
	assert.Equal(t, "9.41", w.PeakPrice.String())
}

func TestEngine_WaitFiresOncePerHigherPrice(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "SPXW", Strike: dec("6805"), Kind: watch.Call, Mode: watch.ModeWait, TargetPrice: nullDec("5.00")})
	h.gw.script("SPXW", testExp,
		chainOf(mid("6805", watch.Call, "4.50")),
		chainOf(mid("6805", watch.Call, "5.00")),
		chainOf(mid("6805", watch.Call, "5.00")),
		chainOf(mid("6805", watch.Call, "5.10")),
		chainOf(mid("6805", watch.Call, "5.05")),
	)

	var fired []int
	for i := 0; i < 5; i++ {
		fired = append(fired, h.pass().Notified)
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0}, fired)
	assert.Equal(t, []string{"wait_first SPXW 5.00", "update SPXW 5.10"}, h.disp.captions())
}

func TestEngine_WaitDownFiresOnLowerPrices(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "QQQ", Strike: dec("500"), Kind: watch.Put, Mode: watch.ModeWaitDown, TargetPrice: nullDec("3.00")})
	h.gw.script("QQQ", testExp,
		chainOf(mid("500", watch.Put, "3.50")),
		chainOf(mid("500", watch.Put, "3.00")),
		chainOf(mid("500", watch.Put, "3.00")),
		chainOf(mid("500", watch.Put, "2.90")),
		chainOf(mid("500", watch.Put, "2.95")),
	)

	var fired []int
	for i := 0; i < 5; i++ {
		fired = append(fired, h.pass().Notified)
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0}, fired)
	assert.Equal(t, []string{"wait_first QQQ 3.00", "update QQQ 2.90"}, h.disp.captions())
}

func TestEngine_PeaksAreMonotonic(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "TSLA", Strike: dec("250"), Kind: watch.Call, Mode: watch.ModePeaks})
	prices := []string{"2.00", "1.80", "2.30", "2.10", "2.30", "2.45"}
	for _, p := range prices {
		h.gw.script("TSLA", testExp, chainOf(mid("250", watch.Call, p)))
	}

	var fired []int
	peak := dec("0")
	for range prices {
		fired = append(fired, h.pass().Notified)
		tr := h.engine.Tracking(id)
		assert.True(t, tr.Peak.GreaterThanOrEqual(peak))
		peak = tr.Peak
	}
	assert.Equal(t, []int{1, 0, 1, 0, 0, 1}, fired)
	assert.Equal(t, "2.45", peak.String())
	assert.Equal(t, "2.45", h.get(id).PeakPrice.String())
	assert.Equal(t, []string{"update TSLA 2.00", "update TSLA 2.30", "update TSLA 2.45"}, h.disp.captions())
}

func TestEngine_NewPeakPersistedWithoutNotification(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AMD", Strike: dec("120"), Kind: watch.Call, Mode: watch.ModeEnter, EntryPrice: nullDec("9.00")})
	h.gw.script("AMD", testExp,
		chainOf(mid("120", watch.Call, "4.00")),
		chainOf(mid("120", watch.Call, "4.50")),
	)
	h.pass()
	h.pass()
	w := h.get(id)
	assert.Equal(t, "4.5", w.PeakPrice.String())
	assert.True(t, w.LastNotifiedPrice.IsZero())
	assert.Empty(t, h.disp.photos)
}

func TestEngine_ExpiresPastWatches(t *testing.T) {
	h := newHarness(t)
	past := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Expiration: "2026-01-19", Mode: watch.ModePeaks})
	today := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Expiration: "2026-01-20", Mode: watch.ModePeaks})
	bad := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Expiration: "next friday", Mode: watch.ModePeaks})
	h.gw.script("AAPL", "2026-01-20", chainOf(mid("150", watch.Call, "1.00")))

	r := h.pass()
	assert.Equal(t, 1, r.Expired)
	assert.Equal(t, 1, r.Invalid)
	assert.Equal(t, 1, r.Groups)
	assert.Equal(t, 1, r.Notified)
	assert.Equal(t, watch.StatusExpired, h.get(past).Status)
	assert.Equal(t, watch.StatusActive, h.get(today).Status)
	assert.Equal(t, watch.StatusActive, h.get(bad).Status)

	active, err := h.store.ListActive(context.Background())
	require.NoError(t, err)
	for _, w := range active {
		assert.NotEqual(t, past, w.ID)
	}
	assert.Equal(t, 0, h.pass().Expired)
	assert.Empty(t, h.disp.texts)
}

func TestEngine_ExpiryUsesMarketTimezone(t *testing.T) {
	// 01:00 UTC 的纽约时间仍是前一天
	h := newHarness(t)
	h.engine.nowFn = func() time.Time { return time.Date(2026, 1, 21, 1, 0, 0, 0, time.UTC) }
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Expiration: "2026-01-20", Mode: watch.ModePeaks})
	h.gw.script("AAPL", "2026-01-20", chainOf(mid("150", watch.Call, "1.00")))

	assert.Equal(t, 0, h.pass().Expired)
	assert.Equal(t, watch.StatusActive, h.get(id).Status)
}

func TestEngine_FuzzyStrikeMatch(t *testing.T) {
	h := newHarness(t)
	near := h.create(watch.NewWatch{Symbol: "SPY", Strike: dec("600"), Kind: watch.Call, Mode: watch.ModePeaks})
	far := h.create(watch.NewWatch{Symbol: "SPY", Strike: dec("610"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("SPY", testExp, chainOf(
		mid("600.03", watch.Call, "3.20"),
		mid("610.10", watch.Call, "1.10"),
		mid("610", watch.Put, "9.99"),
	))

	r := h.pass()
	assert.Equal(t, 1, r.Notified)
	assert.Equal(t, 1, r.Unmatched)
	assert.Equal(t, 0, r.Failed)
	assert.Equal(t, []string{"update SPY 3.20"}, h.disp.captions())
	assert.True(t, h.engine.Tracking(near).Seen)
	assert.False(t, h.engine.Tracking(far).Seen)
}

func TestEngine_EnterScenario(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "NVDA", Strike: dec("140"), Kind: watch.Call, Mode: watch.ModeEnter, EntryPrice: nullDec("4.20")})
	h.gw.script("NVDA", testExp,
		chainOf(quote("140", watch.Call, "4.00", "4.10")),
		chainOf(quote("140", watch.Call, "4.20", "4.30")),
	)

	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)

	require.Len(t, h.disp.photos, 1)
	d := h.disp.photos[0]
	assert.Equal(t, "enter_first NVDA 4.25", d.photo.Caption)
	assert.Equal(t, []int64{42}, d.chats)
	assert.Equal(t, []byte("png:4.25"), d.photo.Image)
	assert.Equal(t, "NVDA_1.png", d.photo.Filename)
	assert.Equal(t, "4.25", h.get(id).LastNotifiedPrice.String())
}

func TestEngine_FailedGroupDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "MSFT", Strike: dec("400"), Kind: watch.Put, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "MSFT", Strike: dec("410"), Kind: watch.Put, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, failed("upstream 502"))
	h.gw.script("MSFT", testExp, chainOf(mid("400", watch.Put, "5.00"), mid("410", watch.Put, "7.00")))

	r := h.pass()
	assert.Equal(t, 2, r.Groups)
	assert.Equal(t, 1, r.FailedGroups)
	assert.Equal(t, 2, r.Notified)
	assert.Equal(t, 2, h.gw.callCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, h.sleeps)
}

func TestEngine_EmptyChainSkipsGroup(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf())
	r := h.pass()
	assert.Equal(t, 1, r.FailedGroups)
	assert.Equal(t, 0, r.Notified)
}

func TestEngine_PanicInOneWatchIsContained(t *testing.T) {
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Renderer = fakeRenderer{panicOn: "BAD"}
	})
	h.create(watch.NewWatch{Symbol: "BAD", Strike: dec("10"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "BAD", Strike: dec("11"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "GOOD", Strike: dec("10"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("BAD", testExp, chainOf(mid("10", watch.Call, "1.00"), mid("11", watch.Call, "0.50")))
	h.gw.script("GOOD", testExp, chainOf(mid("10", watch.Call, "2.00")))

	r := h.pass()
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, 1, r.Notified)
	assert.Equal(t, []string{"update GOOD 2.00"}, h.disp.captions())
}

func TestEngine_RenderFailureFallsBackToText(t *testing.T) {
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Renderer = fakeRenderer{err: errors.New("no font")}
	})
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf(mid("150", watch.Call, "1.00")))

	assert.Equal(t, 1, h.pass().Notified)
	require.Len(t, h.disp.photos, 1)
	assert.Nil(t, h.disp.photos[0].photo.Image)
}

func TestEngine_BroadcastTargetsAndDeliveryErrors(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *Deps) {
		o.BroadcastChatIDs = []int64{-1001, -1002}
	})
	h.disp.err = errors.New("chat -1001: forbidden")
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("155"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf(mid("150", watch.Call, "1.00"), mid("155", watch.Call, "0.80")))

	r := h.pass()
	assert.Equal(t, 2, r.Notified)
	require.Len(t, h.disp.photos, 2)
	for _, d := range h.disp.photos {
		assert.Equal(t, []int64{-1001, -1002}, d.chats)
	}
}

func TestEngine_HydratesPersistedTracking(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModeAlways})
	h.store.UpdateTracking(context.Background(), id, dec("5.00"), dec("6.00"))
	h.gw.script("AAPL", testExp,
		chainOf(mid("150", watch.Call, "5.00")),
		chainOf(mid("150", watch.Call, "5.20")),
	)

	// 重启后同价不重复推送
	assert.Equal(t, 0, h.pass().Notified)
	tr := h.engine.Tracking(id)
	assert.Equal(t, "6", tr.Peak.String())
	assert.Equal(t, 1, h.pass().Notified)
	assert.Equal(t, []string{"update AAPL 5.20"}, h.disp.captions())
	assert.Equal(t, "6", h.get(id).PeakPrice.String())
}

func TestEngine_AlwaysSeedsAfterRestartAboveLastNotified(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModeAlways})
	h.store.UpdateTracking(context.Background(), id, dec("5.00"), dec("6.00"))
	h.gw.script("AAPL", testExp,
		chainOf(mid("150", watch.Call, "5.20")),
		chainOf(mid("150", watch.Call, "5.20")),
		chainOf(mid("150", watch.Call, "5.30")),
	)

	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, "5.2", h.engine.Tracking(id).LastNotified.String())
	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)
	assert.Equal(t, []string{"update AAPL 5.30"}, h.disp.captions())
}

func TestEngine_AlwaysSeedsAtPersistedLastWhenPriceFell(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModeAlways})
	h.store.UpdateTracking(context.Background(), id, dec("5.50"), dec("6.00"))
	h.gw.script("AAPL", testExp,
		chainOf(mid("150", watch.Call, "5.20")),
		chainOf(mid("150", watch.Call, "5.40")),
		chainOf(mid("150", watch.Call, "5.60")),
	)

	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, "5.5", h.engine.Tracking(id).LastNotified.String())
	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)
	assert.Equal(t, []string{"update AAPL 5.60"}, h.disp.captions())
}

func TestEngine_PeaksWaitForNewHighAfterRestart(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.store.UpdateTracking(context.Background(), id, dec("6.00"), dec("6.00"))
	h.gw.script("AAPL", testExp,
		chainOf(mid("150", watch.Call, "5.20")),
		chainOf(mid("150", watch.Call, "6.10")),
	)

	assert.Equal(t, 0, h.pass().Notified)
	assert.Equal(t, 1, h.pass().Notified)
}

func TestEngine_SharesFetchAcrossIndexWrappers(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "SPX", Strike: dec("6800"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.create(watch.NewWatch{Symbol: "SPXW", Strike: dec("6805"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("SPX", testExp, chainOf(mid("6800", watch.Call, "7.00"), mid("6805", watch.Call, "5.00")))

	r := h.pass()
	assert.Equal(t, 1, r.Groups)
	assert.Equal(t, 1, h.gw.callCount())
	assert.Equal(t, 2, r.Notified)
	assert.ElementsMatch(t, []string{"update SPX 7.00", "update SPXW 5.00"}, h.disp.captions())
}

func TestEngine_SkipsQuoteWithoutPrices(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Put, Mode: watch.ModeWaitDown, TargetPrice: nullDec("2.00")})
	h.gw.script("AAPL", testExp,
		chainOf(market.Quote{Strike: dec("150"), Kind: watch.Put}),
		chainOf(mid("150", watch.Put, "1.90")),
	)

	r := h.pass()
	assert.Equal(t, 0, r.Notified)
	assert.Equal(t, 1, r.Unpriced)
	assert.False(t, h.engine.Tracking(id).Seen)

	assert.Equal(t, 1, h.pass().Notified)
	assert.Equal(t, []string{"wait_first AAPL 1.90"}, h.disp.captions())
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n events.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func TestEngine_PublishesEvents(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(n events.Notification) bool {
		return n.Symbol == "AAPL" && n.Price == "1.00" && n.Caption == "update" && n.Mode == "peaks" && n.TraceID == "trace"
	})).Return(errors.New("redis down")).Once()

	h := newHarness(t, func(_ *Options, d *Deps) { d.Events = pub })
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf(mid("150", watch.Call, "1.00")))

	assert.Equal(t, 1, h.pass().Notified)
	pub.AssertExpectations(t)
}

func TestEngine_ForgetDropsState(t *testing.T) {
	h := newHarness(t)
	id := h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf(mid("150", watch.Call, "1.00")))
	h.pass()
	require.True(t, h.engine.Tracking(id).Seen)
	h.engine.Forget(id)
	assert.False(t, h.engine.Tracking(id).Seen)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.create(watch.NewWatch{Symbol: "AAPL", Strike: dec("150"), Kind: watch.Call, Mode: watch.ModePeaks})
	h.gw.script("AAPL", testExp, chainOf(mid("150", watch.Call, "1.00")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var intervals int
	h.engine.sleepFn = func(ctx context.Context, d time.Duration) bool {
		if d == 8*time.Second {
			intervals++
			if intervals == 2 {
				cancel()
			}
		}
		return ctx.Err() == nil
	}

	require.NoError(t, h.engine.Run(ctx))
	assert.Equal(t, 2, intervals)
	assert.Equal(t, 2, h.gw.callCount())
}

func TestEngine_ListFailureAbortsPass(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Close())
	r := h.pass()
	assert.Equal(t, 0, r.Active)
	assert.Equal(t, 0, h.gw.callCount())
}
