package config

import (
	"strings"
	"sync"

	"tradepilot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Tunables 持有可热更新的阈值快照（硬过滤器、止盈止损、置信度门槛）。
// 其余配置（模型、存储、节拍）仍需重启生效。
type Tunables struct {
	mu      sync.RWMutex
	filter  FilterConfig
	trading TradingConfig
}

func NewTunables(cfg *Config) *Tunables {
	t := &Tunables{}
	if cfg != nil {
		t.filter = cfg.Filter
		t.trading = cfg.Trading
	}
	return t
}

func (t *Tunables) Filter() FilterConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filter
}

func (t *Tunables) Trading() TradingConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.trading
}

func (t *Tunables) update(cfg *Config) {
	if cfg == nil {
		return
	}
	t.mu.Lock()
	t.filter = cfg.Filter
	t.trading = cfg.Trading
	t.mu.Unlock()
}

// Watch 监听配置文件变更并热更新 Tunables。加载失败只告警，保留旧快照。
func Watch(path string, tunables *Tunables) error {
	if strings.TrimSpace(path) == "" || tunables == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		tunables.update(cfg)
		logger.Infof("config reloaded: filter/trading thresholds updated (min_confidence=%.0f tp=%.1f%% sl=%.1f%%)",
			cfg.Trading.MinConfidence, cfg.Trading.TakeProfitPct, cfg.Trading.StopLossPct)
	})
	v.WatchConfig()
	return nil
}
