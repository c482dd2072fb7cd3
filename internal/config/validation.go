package config

import (
	"fmt"
	"strings"
)

// validate 在启动期拦截致命配置错误，带着坏配置继续跑没有意义。
// 单个模型缺少 API Key 不算致命——该模型不会被标记 ready，
// 但至少要有一个可用模型，否则 AI 层永远不可用。
func validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if c.Filter.MACDFast >= c.Filter.MACDSlow {
		return fmt.Errorf("filter: macd_fast (%d) must be less than macd_slow (%d)", c.Filter.MACDFast, c.Filter.MACDSlow)
	}
	if c.Filter.RSIOversold >= c.Filter.RSIOverbought {
		return fmt.Errorf("filter: rsi_oversold (%.1f) must be below rsi_overbought (%.1f)", c.Filter.RSIOversold, c.Filter.RSIOverbought)
	}
	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 100 {
		return fmt.Errorf("trading: min_confidence must be within [0,100], got %.1f", c.Trading.MinConfidence)
	}
	if c.Trading.StopLossPct >= 100 {
		return fmt.Errorf("trading: stop_loss_pct must be below 100, got %.1f", c.Trading.StopLossPct)
	}
	for _, inst := range c.Schedule.Instruments {
		if strings.TrimSpace(inst.Symbol) == "" {
			return fmt.Errorf("schedule: instrument symbol cannot be empty")
		}
	}
	seen := make(map[string]struct{}, len(c.AI.Models))
	for _, m := range c.AI.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("ai: duplicate model id %q", id)
		}
		seen[id] = struct{}{}
		resolved := m.Resolve(c.AI.ProviderPresets)
		switch strings.ToLower(strings.TrimSpace(resolved.Provider)) {
		case "", "openai", "gemini":
		default:
			return fmt.Errorf("ai: model %q has unknown provider %q", id, resolved.Provider)
		}
	}
	return nil
}
