package app

import (
	"context"
	"fmt"

	"optwatch/internal/config"
	"optwatch/internal/logger"
	"optwatch/internal/monitor"
	"optwatch/internal/store"
	adminhttp "optwatch/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动监控循环与管理接口。
type App struct {
	cfg      *config.Config
	store    store.Store
	engine   *monitor.Engine
	service  *monitor.Service
	adminAPI *adminhttp.Server
	closers  []func() error
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 阻塞直到 ctx 结束或任一子服务返回错误。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.engine == nil {
		return fmt.Errorf("monitor engine not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.adminAPI != nil {
		group.Go(func() error {
			if err := a.adminAPI.Start(ctx); err != nil {
				return fmt.Errorf("admin http server error: %w", err)
			}
			return nil
		})
	}

	if a.cfg.Monitor.Enabled {
		group.Go(func() error {
			return a.engine.Run(ctx)
		})
	} else {
		logger.Warnf("monitor disabled, only admin api is served")
	}

	return group.Wait()
}

// Close 按构建的逆序释放资源，可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	closers := a.closers
	a.closers = nil
	closeAll(closers)
}

// Engine exposes the monitor engine (for tests and one-shot passes).
func (a *App) Engine() *monitor.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) Service() *monitor.Service {
	if a == nil {
		return nil
	}
	return a.service
}
