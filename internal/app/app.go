package app

import (
	"context"
	"fmt"
	"time"

	"tradepilot/internal/ai"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/store/gormstore"
	transporthttp "tradepilot/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 应用级编排：加载配置→装配依赖→启动调度循环与观测接口。
type App struct {
	cfg       *config.Config
	store     *gormstore.Store
	manager   *ai.Manager
	tunables  *config.Tunables
	scheduler *scheduler.Scheduler
	http      *transporthttp.Server
	summary   *StartupSummary

	configPath string
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config, configPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	app, err := buildApp(cfg)
	if err != nil {
		return nil, err
	}
	app.configPath = configPath
	return app, nil
}

// Run 启动全部服务并阻塞到 ctx 取消或某个服务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if a.store != nil {
			_ = a.store.Close()
		}
	}()

	if a.summary != nil {
		a.summary.Print()
	}

	// 启动前探测一次连通性，坏节点提前摘出候选列表
	if a.manager != nil {
		a.manager.TestConnection(ctx)
		a.manager.StartHealthLoop(ctx, time.Duration(a.cfg.AI.HealthIntervalSeconds)*time.Second)
	}

	if a.configPath != "" {
		if err := config.Watch(a.configPath, a.tunables); err != nil {
			logger.Warnf("config watch disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		err := a.scheduler.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	return group.Wait()
}
