package ai

import (
	"fmt"
	"strings"

	"tradepilot/internal/indicator"
	"tradepilot/internal/market"
)

// PromptInput 构造提示词所需的全部市场上下文。
type PromptInput struct {
	Symbol     string
	Timeframe  string
	Latest     market.Candle
	Indicators indicator.Set
	Candidate  string // 硬过滤器给出的候选方向
}

const systemPrompt = `You are a disciplined crypto trading analyst. ` +
	`You validate pre-screened technical signals. Respond with a single JSON object ` +
	`containing exactly these fields: "action" (BUY, SELL or WAIT), "confidence" ` +
	`(number 0-100), "reason" (short string), "riskLevel" (LOW, MEDIUM or HIGH). ` +
	`You may additionally include "suggestedStopLoss" and "suggestedTakeProfit" as numbers. ` +
	`Do not output anything outside the JSON object.`

// BuildPrompt 生成 system/user 两段提示词。
// user 段包含最新 OHLCV、指标值与市场概况（趋势/波动/量能标签）。
func BuildPrompt(in PromptInput) (system, user string) {
	c := in.Latest
	set := in.Indicators

	volatility := 0.0
	if c.Open > 0 {
		volatility = (c.High - c.Low) / c.Open * 100
	}
	volumeRatio := 0.0
	if set.VolumeMA > 0 {
		volumeRatio = c.Volume / set.VolumeMA
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s (timeframe %s)\n", strings.ToUpper(in.Symbol), in.Timeframe)
	fmt.Fprintf(&b, "Latest candle: open=%.6f high=%.6f low=%.6f close=%.6f volume=%.2f\n",
		c.Open, c.High, c.Low, c.Close, c.Volume)
	fmt.Fprintf(&b, "Indicators: RSI=%.2f MACD line=%.6f signal=%.6f histogram=%.6f volumeMA=%.2f\n",
		set.RSI, set.MACD.Line, set.MACD.Signal, set.MACD.Histogram, set.VolumeMA)
	fmt.Fprintf(&b, "Market context: trend=%s volatility=%.2f%% volume=%s (%.2fx of average)\n",
		trendLabel(c, set), volatility, volumeLabel(volumeRatio), volumeRatio)
	fmt.Fprintf(&b, "Hard filter candidate signal: %s\n", in.Candidate)
	b.WriteString("Validate this candidate and answer with the JSON object only.")
	return systemPrompt, b.String()
}

func trendLabel(c market.Candle, set indicator.Set) string {
	switch {
	case set.MACD.Histogram > 0 && c.Close >= c.Open:
		return "bullish"
	case set.MACD.Histogram < 0 && c.Close <= c.Open:
		return "bearish"
	default:
		return "mixed"
	}
}

func volumeLabel(ratio float64) string {
	switch {
	case ratio >= 1.5:
		return "surging"
	case ratio >= 1.2:
		return "elevated"
	case ratio >= 0.8:
		return "normal"
	default:
		return "thin"
	}
}
