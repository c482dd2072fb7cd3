package config

import "strings"

// Config 是 tradepilot 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Store     StoreConfig     `toml:"store"`
	AI        AIConfig        `toml:"ai"`
	Filter    FilterConfig    `toml:"filter"`
	Trading   TradingConfig   `toml:"trading"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Retry     RetryConfig     `toml:"retry"`
	Schedule  ScheduleConfig  `toml:"schedule"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type MarketConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CandleLimit    int    `toml:"candle_limit"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

// AIConfig 包含模型接入与决策校验相关的所有设置。
type AIConfig struct {
	Primary               string                 `toml:"primary"`
	TimeoutSeconds        int                    `toml:"timeout_seconds"`
	HealthIntervalSeconds int                    `toml:"health_interval_seconds"`
	ProviderPresets       map[string]ModelPreset `toml:"provider_presets"`
	Models                []AIModelConfig        `toml:"models"`
}

// ModelPreset 描述可复用的 API 连接配置。
type ModelPreset struct {
	Provider string            `toml:"provider"`
	APIURL   string            `toml:"api_url"`
	APIKey   string            `toml:"api_key"`
	Headers  map[string]string `toml:"headers"`
}

// AIModelConfig 代表一个可被选为主力或备选的模型条目。
type AIModelConfig struct {
	ID             string            `toml:"id"`
	Provider       string            `toml:"provider"` // "openai" | "gemini"
	Preset         string            `toml:"preset"`
	Enabled        bool              `toml:"enabled"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	CostPerCallUSD float64           `toml:"cost_per_call_usd"`
}

// Resolve 合并预设后的最终模型配置。
func (m AIModelConfig) Resolve(presets map[string]ModelPreset) AIModelConfig {
	preset, ok := presets[strings.TrimSpace(m.Preset)]
	if !ok {
		return m
	}
	out := m
	if strings.TrimSpace(out.Provider) == "" {
		out.Provider = preset.Provider
	}
	if strings.TrimSpace(out.APIURL) == "" {
		out.APIURL = preset.APIURL
	}
	if strings.TrimSpace(out.APIKey) == "" {
		out.APIKey = preset.APIKey
	}
	if len(out.Headers) == 0 {
		out.Headers = preset.Headers
	}
	return out
}

// FilterConfig 控制硬性过滤器与指标参数。
type FilterConfig struct {
	RSIPeriod      int     `toml:"rsi_period"`
	RSIOversold    float64 `toml:"rsi_oversold"`
	RSIOverbought  float64 `toml:"rsi_overbought"`
	MACDFast       int     `toml:"macd_fast"`
	MACDSlow       int     `toml:"macd_slow"`
	MACDSignal     int     `toml:"macd_signal"`
	VolumeMAPeriod int     `toml:"volume_ma_period"`
	VolumeRatioMin float64 `toml:"volume_ratio_min"`
	MinBodyPct     float64 `toml:"min_body_pct"`
}

// TradingConfig 控制开平仓策略与置信度门槛。
type TradingConfig struct {
	TakeProfitPct   float64 `toml:"take_profit_pct"`
	StopLossPct     float64 `toml:"stop_loss_pct"`
	PositionSizeUSD float64 `toml:"position_size_usd"`
	MinConfidence   float64 `toml:"min_confidence"`
	// AllowShort 为显式的做空开关：硬过滤器的 SELL 候选仅作观察记录，
	// 除非显式开启做空，否则最终动作一律 WAIT。
	AllowShort bool `toml:"allow_short"`
}

type RateLimitConfig struct {
	Exchange BucketConfig `toml:"exchange"`
	AI       BucketConfig `toml:"ai"`
}

type BucketConfig struct {
	Capacity      int `toml:"capacity"`
	WindowSeconds int `toml:"window_seconds"`
}

type RetryConfig struct {
	MaxRetries     int      `toml:"max_retries"`
	InitialDelayMs int      `toml:"initial_delay_ms"`
	MaxDelayMs     int      `toml:"max_delay_ms"`
	BackoffFactor  float64  `toml:"backoff_factor"`
	ExtraRetryable []string `toml:"extra_retryable"`
}

// ScheduleConfig 描述各 interval class 的节拍。
type ScheduleConfig struct {
	Instruments            []InstrumentConfig `toml:"instruments"`
	MonitorIntervalSeconds int                `toml:"monitor_interval_seconds"`
	RunImmediately         bool               `toml:"run_immediately"`
}

type InstrumentConfig struct {
	Symbol     string   `toml:"symbol"`
	Timeframes []string `toml:"timeframes"`
}

// Symbols 返回去重排序前的全部标的符号（大写）。
func (s ScheduleConfig) Symbols() []string {
	out := make([]string, 0, len(s.Instruments))
	seen := make(map[string]struct{}, len(s.Instruments))
	for _, inst := range s.Instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
