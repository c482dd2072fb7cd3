package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 YAML 配置并套用默认值与校验。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRADEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", abs, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8089"
	}
	if c.Market.RESTBaseURL == "" {
		c.Market.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = 15
	}
	if c.Market.CandleLimit <= 0 {
		c.Market.CandleLimit = 100
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/tradepilot.db"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 30
	}
	if c.AI.HealthIntervalSeconds <= 0 {
		c.AI.HealthIntervalSeconds = 300
	}
	if c.Filter.RSIPeriod <= 0 {
		c.Filter.RSIPeriod = 14
	}
	if c.Filter.RSIOversold <= 0 {
		c.Filter.RSIOversold = 30
	}
	if c.Filter.RSIOverbought <= 0 {
		c.Filter.RSIOverbought = 70
	}
	if c.Filter.MACDFast <= 0 {
		c.Filter.MACDFast = 12
	}
	if c.Filter.MACDSlow <= 0 {
		c.Filter.MACDSlow = 26
	}
	if c.Filter.MACDSignal <= 0 {
		c.Filter.MACDSignal = 9
	}
	if c.Filter.VolumeMAPeriod <= 0 {
		c.Filter.VolumeMAPeriod = 20
	}
	if c.Filter.VolumeRatioMin <= 0 {
		c.Filter.VolumeRatioMin = 1.2
	}
	if c.Filter.MinBodyPct <= 0 {
		c.Filter.MinBodyPct = 0.5
	}
	if c.Trading.TakeProfitPct <= 0 {
		c.Trading.TakeProfitPct = 6
	}
	if c.Trading.StopLossPct <= 0 {
		c.Trading.StopLossPct = 3
	}
	if c.Trading.PositionSizeUSD <= 0 {
		c.Trading.PositionSizeUSD = 100
	}
	if c.Trading.MinConfidence <= 0 {
		c.Trading.MinConfidence = 80
	}
	if c.RateLimit.Exchange.Capacity <= 0 {
		c.RateLimit.Exchange.Capacity = 1200
	}
	if c.RateLimit.Exchange.WindowSeconds <= 0 {
		c.RateLimit.Exchange.WindowSeconds = 60
	}
	if c.RateLimit.AI.Capacity <= 0 {
		c.RateLimit.AI.Capacity = 30
	}
	if c.RateLimit.AI.WindowSeconds <= 0 {
		c.RateLimit.AI.WindowSeconds = 60
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.InitialDelayMs <= 0 {
		c.Retry.InitialDelayMs = 1000
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = 10000
	}
	if c.Retry.BackoffFactor <= 0 {
		c.Retry.BackoffFactor = 2
	}
	if c.Schedule.MonitorIntervalSeconds <= 0 {
		c.Schedule.MonitorIntervalSeconds = 60
	}
	if len(c.Schedule.Instruments) == 0 {
		c.Schedule.Instruments = []InstrumentConfig{{Symbol: "BTCUSDT", Timeframes: []string{"1h"}}}
	}
	for i := range c.Schedule.Instruments {
		if len(c.Schedule.Instruments[i].Timeframes) == 0 {
			c.Schedule.Instruments[i].Timeframes = []string{"1h"}
		}
	}
}
