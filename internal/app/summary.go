package app

import (
	"fmt"
	"strings"

	"tradepilot/internal/ai"
	"tradepilot/internal/config"
	"tradepilot/internal/logger"
)

// StartupSummary 启动时打印一次的配置摘要，便于核对当前生效的阈值。
type StartupSummary struct {
	Instruments    []string
	ActiveProvider string
	Providers      []string
	Filter         config.FilterConfig
	Trading        config.TradingConfig
	MonitorEverySec int
}

func buildSummary(cfg *config.Config, manager *ai.Manager) *StartupSummary {
	s := &StartupSummary{
		Filter:          cfg.Filter,
		Trading:         cfg.Trading,
		MonitorEverySec: cfg.Schedule.MonitorIntervalSeconds,
	}
	for _, inst := range cfg.Schedule.Instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym == "" {
			continue
		}
		s.Instruments = append(s.Instruments, fmt.Sprintf("%s [%s]", sym, strings.Join(inst.Timeframes, ", ")))
	}
	if manager != nil {
		s.ActiveProvider = manager.ActiveID()
		for _, h := range manager.Stats() {
			s.Providers = append(s.Providers, h.ServiceID)
		}
	}
	return s
}

func (s *StartupSummary) Print() {
	var b strings.Builder
	line := strings.Repeat("=", 72)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "[监控标的 (INSTRUMENTS)]")
	if len(s.Instruments) == 0 {
		fmt.Fprintln(&b, "  (无)")
	}
	for _, inst := range s.Instruments {
		fmt.Fprintf(&b, "  - %s\n", inst)
	}

	fmt.Fprintln(&b, "[AI 供应商 (PROVIDERS)]")
	if len(s.Providers) == 0 {
		fmt.Fprintln(&b, "  (未配置，纯观察模式，所有信号将为 WAIT)")
	} else {
		fmt.Fprintf(&b, "  主力: %s\n", s.ActiveProvider)
		fmt.Fprintf(&b, "  候选: %s\n", strings.Join(s.Providers, ", "))
	}

	fmt.Fprintln(&b, "[硬过滤器 (HARD FILTER)]")
	fmt.Fprintf(&b, "  RSI: period=%d oversold=%.0f overbought=%.0f\n",
		s.Filter.RSIPeriod, s.Filter.RSIOversold, s.Filter.RSIOverbought)
	fmt.Fprintf(&b, "  MACD: %d/%d/%d\n", s.Filter.MACDFast, s.Filter.MACDSlow, s.Filter.MACDSignal)
	fmt.Fprintf(&b, "  量能: ma=%d ratio>=%.2f body>=%.2f%%\n",
		s.Filter.VolumeMAPeriod, s.Filter.VolumeRatioMin, s.Filter.MinBodyPct)

	fmt.Fprintln(&b, "[交易策略 (TRADING)]")
	fmt.Fprintf(&b, "  止盈=%.1f%% 止损=%.1f%% 仓位=%.0f USD 置信度门槛=%.0f\n",
		s.Trading.TakeProfitPct, s.Trading.StopLossPct, s.Trading.PositionSizeUSD, s.Trading.MinConfidence)
	fmt.Fprintf(&b, "  做空: %v  仓位监控间隔: %ds\n", s.Trading.AllowShort, s.MonitorEverySec)
	fmt.Fprintln(&b, line)

	logger.InfoBlock(b.String())
}
