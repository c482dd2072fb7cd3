package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradepilot/internal/ai"
	"tradepilot/internal/ai/provider"
	"tradepilot/internal/config"
	"tradepilot/internal/market"
	"tradepilot/internal/position"
	"tradepilot/internal/ratelimit"
	"tradepilot/internal/retry"
	"tradepilot/internal/scheduler"
	"tradepilot/internal/signal"
	"tradepilot/internal/store/gormstore"
	transporthttp "tradepilot/internal/transport/http"
)

// buildApp 手工装配全部依赖。装配顺序即依赖顺序：
// store → 限流/重试 → 行情 → AI → 引擎 → 仓位 → 调度 → HTTP。
func buildApp(cfg *config.Config) (*App, error) {
	store, err := gormstore.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	buckets := ratelimit.NewRegistry()
	exchangeBucket := buckets.Bucket("exchange",
		cfg.RateLimit.Exchange.Capacity,
		time.Duration(cfg.RateLimit.Exchange.WindowSeconds)*time.Second)

	retryPolicy := retry.Policy{
		MaxRetries:     cfg.Retry.MaxRetries,
		InitialDelay:   time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		BackoffFactor:  cfg.Retry.BackoffFactor,
		ExtraRetryable: cfg.Retry.ExtraRetryable,
	}
	retrier := retry.NewExecutor(retryPolicy)

	source := market.NewBinanceSource(market.BinanceConfig{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})
	marketSvc := market.NewService(source, store, exchangeBucket, retrier, cfg.Market.CandleLimit)

	manager := buildAIManager(cfg, buckets, retryPolicy)

	tunables := config.NewTunables(cfg)
	engine := signal.NewEngine(managerOrNil(manager), tunables)
	positions := position.NewManager(store, marketSvc, tunables)
	live := NewLiveService(marketSvc, engine, positions, store, tunables)

	sched := scheduler.New(cfg.Schedule.RunImmediately)
	if err := registerTasks(sched, cfg, live, positions); err != nil {
		return nil, err
	}

	httpSrv := transporthttp.NewServer(cfg.App.HTTPAddr, store, manager, buckets)

	return &App{
		cfg:       cfg,
		store:     store,
		manager:   manager,
		tunables:  tunables,
		scheduler: sched,
		http:      httpSrv,
		summary:   buildSummary(cfg, manager),
	}, nil
}

// buildAIManager 把配置条目展开为供应商适配器并组装 Manager。
// 没有任何可用模型时返回 nil：系统继续以纯观察模式运行，引擎一律 WAIT。
func buildAIManager(cfg *config.Config, buckets *ratelimit.Registry, retryPolicy retry.Policy) *ai.Manager {
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	models := make([]provider.ModelCfg, 0, len(cfg.AI.Models))
	for _, m := range cfg.AI.Models {
		resolved := m.Resolve(cfg.AI.ProviderPresets)
		models = append(models, provider.ModelCfg{
			ID:             resolved.ID,
			Provider:       resolved.Provider,
			APIURL:         resolved.APIURL,
			APIKey:         resolved.APIKey,
			Model:          resolved.Model,
			Headers:        resolved.Headers,
			Enabled:        resolved.Enabled,
			CostPerCallUSD: resolved.CostPerCallUSD,
		})
	}
	providers := provider.BuildProviders(models, timeout)
	if len(providers) == 0 {
		return nil
	}
	return ai.NewManager(ai.ManagerOptions{
		Providers: providers,
		Primary:   cfg.AI.Primary,
		Timeout:   timeout,
		Retry:     retryPolicy,
		Buckets:   buckets,
		BucketCap: cfg.RateLimit.AI.Capacity,
		BucketWin: time.Duration(cfg.RateLimit.AI.WindowSeconds) * time.Second,
	})
}

// managerOrNil 避免把带类型的 nil 指针塞进接口变量。
func managerOrNil(m *ai.Manager) signal.Predictor {
	if m == nil {
		return nil
	}
	return m
}

// registerTasks 为每个 (symbol, timeframe) 注册独立节拍的评估循环，
// 外加一条固定节拍的仓位监控循环。未知周期是配置错误，启动期失败。
func registerTasks(sched *scheduler.Scheduler, cfg *config.Config, live *LiveService, positions *position.Manager) error {
	for _, inst := range cfg.Schedule.Instruments {
		symbol := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if symbol == "" {
			continue
		}
		for _, timeframe := range inst.Timeframes {
			tf, err := market.ParseTimeframe(timeframe)
			if err != nil {
				return fmt.Errorf("schedule %s: %w", symbol, err)
			}
			sym, key := symbol, tf.Key
			sched.Add(fmt.Sprintf("signal:%s@%s", sym, key), tf.Duration, func(ctx context.Context) error {
				return live.RunCycle(ctx, sym, key)
			})
		}
	}
	monitorEvery := time.Duration(cfg.Schedule.MonitorIntervalSeconds) * time.Second
	sched.Add("position-monitor", monitorEvery, positions.MonitorTick)
	return nil
}
