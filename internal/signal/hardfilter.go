package signal

import (
	"fmt"

	"tradepilot/internal/config"
	"tradepilot/internal/indicator"
	"tradepilot/internal/market"
)

// EvaluateHardFilter 对最新一根K线做确定性门控。
// 纯函数：相同输入恒得相同候选方向。这一层的目的只是别把
// 统计上无趣的K线送去烧模型配额，永远不会被绕过。
//
// BUY：RSI 超卖 且 MACD 柱为正 且 量能放大 且 实体波幅足够；
// SELL：RSI 超买 且 MACD 柱为负；
// 其余 NEUTRAL。
func EvaluateHardFilter(set indicator.Set, latest market.Candle, cfg config.FilterConfig) HardFilterResult {
	volumeRatio := 0.0
	if set.VolumeMA > 0 {
		volumeRatio = latest.Volume / set.VolumeMA
	}
	bodyPct := latest.Body() * 100

	metrics := Metrics{
		RSI:         set.RSI,
		Histogram:   set.MACD.Histogram,
		VolumeRatio: volumeRatio,
		BodyPct:     bodyPct,
	}

	if set.RSI < cfg.RSIOversold &&
		set.MACD.Histogram > 0 &&
		volumeRatio >= cfg.VolumeRatioMin &&
		bodyPct >= cfg.MinBodyPct {
		return HardFilterResult{
			Candidate: ActionBuy,
			Reason: fmt.Sprintf("rsi=%.1f<%.0f, histogram>0, volume %.2fx, body %.2f%%",
				set.RSI, cfg.RSIOversold, volumeRatio, bodyPct),
			Metrics: metrics,
		}
	}

	if set.RSI > cfg.RSIOverbought && set.MACD.Histogram < 0 {
		return HardFilterResult{
			Candidate: ActionSell,
			Reason: fmt.Sprintf("rsi=%.1f>%.0f, histogram<0",
				set.RSI, cfg.RSIOverbought),
			Metrics: metrics,
		}
	}

	return HardFilterResult{
		Candidate: ActionNeutral,
		Reason:    "hard filter not met",
		Metrics:   metrics,
	}
}
