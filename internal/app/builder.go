package app

import (
	"context"
	"fmt"
	"strings"

	"optwatch/internal/caption"
	"optwatch/internal/config"
	"optwatch/internal/gateway/events"
	"optwatch/internal/gateway/notifier"
	"optwatch/internal/gateway/webull"
	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/monitor"
	"optwatch/internal/render"
	"optwatch/internal/store"
	"optwatch/internal/store/postgres"
	"optwatch/internal/store/sqlite"
	adminhttp "optwatch/internal/transport/http/admin"
)

type AppBuilder struct {
	cfg *config.Config

	storeFn      func(config.DatabaseConfig) (store.Store, error)
	gatewayFn    func(config.MarketConfig) (market.Gateway, error)
	dispatcherFn func(config.TelegramConfig) (notifier.Dispatcher, error)
	eventsFn     func(context.Context, config.RedisConfig) (events.Publisher, func() error, error)
}

type AppBuilderOption func(*AppBuilder)

// WithStore 替换存储构造（测试用）。
func WithStore(fn func(config.DatabaseConfig) (store.Store, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.storeFn = fn }
}

func WithGateway(fn func(config.MarketConfig) (market.Gateway, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.gatewayFn = fn }
}

func WithDispatcher(fn func(config.TelegramConfig) (notifier.Dispatcher, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.dispatcherFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:          cfg,
		storeFn:      openStore,
		gatewayFn:    buildGateway,
		dispatcherFn: buildDispatcher,
		eventsFn:     buildEvents,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	captions, err := caption.NewRegistry(cfg.Notify.TemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("load caption templates: %w", err)
	}
	st, err := b.storeFn(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers := []func() error{st.Close}
	fail := func(err error) (*App, error) {
		closeAll(closers)
		return nil, err
	}

	gw, err := b.gatewayFn(cfg.Market)
	if err != nil {
		return fail(fmt.Errorf("init market gateway: %w", err))
	}
	disp, err := b.dispatcherFn(cfg.Notify.Telegram)
	if err != nil {
		return fail(fmt.Errorf("init notifier: %w", err))
	}
	pub, closePub, err := b.eventsFn(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("redis 事件发布不可用，降级为不发布: %v", err)
		pub, closePub = events.Nop{}, nil
	}
	if closePub != nil {
		closers = append(closers, closePub)
	}

	opts := monitorOptions(cfg)
	deps := monitor.Deps{
		Store:      st,
		Ledger:     st,
		Gateway:    gw,
		Dispatcher: disp,
		Captions:   captions,
		Renderer:   render.NewCardRenderer(),
		Events:     pub,
	}
	engine, err := monitor.NewEngine(deps, opts)
	if err != nil {
		return fail(err)
	}
	svc, err := monitor.NewService(deps, opts)
	if err != nil {
		return fail(err)
	}
	svc.OnRemoved(engine.Forget)

	var httpSrv *adminhttp.Server
	if addr := strings.TrimSpace(cfg.App.HTTPAddr); addr != "" && addr != "off" {
		httpSrv, err = adminhttp.NewServer(adminhttp.ServerConfig{Addr: addr, Service: svc})
		if err != nil {
			return fail(err)
		}
	}

	return &App{
		cfg:      cfg,
		store:    st,
		engine:   engine,
		service:  svc,
		adminAPI: httpSrv,
		closers:  closers,
		Summary:  newStartupSummary(cfg, captions.Snapshot()),
	}, nil
}

func monitorOptions(cfg *config.Config) monitor.Options {
	jMin, jMax := cfg.Monitor.JitterRange()
	return monitor.Options{
		Interval:         cfg.Monitor.Interval(),
		JitterMin:        jMin,
		JitterMax:        jMax,
		FetchTimeout:     cfg.Monitor.FetchTimeout(),
		Location:         cfg.Monitor.Location(),
		RenderImages:     cfg.Monitor.RenderImages,
		BroadcastChatIDs: append([]int64(nil), cfg.Notify.Telegram.BroadcastChatIDs...),
	}
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "postgres":
		logger.Infof("store: postgres %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
		return postgres.NewPostgresStore(postgres.Options{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.Name,
			User:     cfg.User,
			Password: cfg.Password,
			SSLMode:  cfg.SSLMode,
			MaxConns: cfg.MaxConns,
		})
	default:
		logger.Infof("store: sqlite %s", cfg.Path)
		return sqlite.NewSqliteStore(cfg.Path)
	}
}

func buildGateway(cfg config.MarketConfig) (market.Gateway, error) {
	return webull.NewClient(cfg)
}

func buildDispatcher(cfg config.TelegramConfig) (notifier.Dispatcher, error) {
	if !cfg.Enabled {
		logger.Warnf("telegram 未启用，通知只写日志")
		return notifier.LogDispatcher{}, nil
	}
	return notifier.NewTelegram(notifier.TelegramOptions{
		BotToken:      cfg.BotToken,
		ServerURL:     cfg.ServerURL,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		MaxAttempts:   cfg.MaxAttempts,
		Timeout:       cfg.Timeout(),
	})
}

func buildEvents(ctx context.Context, cfg config.RedisConfig) (events.Publisher, func() error, error) {
	if !cfg.Enabled {
		return events.Nop{}, nil, nil
	}
	pub, err := events.NewRedisPublisher(ctx, events.RedisOptions{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Channel:  cfg.Channel,
	})
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Close, nil
}

func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warnf("close resource failed: %v", err)
		}
	}
}
