package signal

import (
	"context"
	"errors"
	"math"
	"testing"

	"tradepilot/internal/ai"
	"tradepilot/internal/config"
	"tradepilot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePredictor struct {
	decision  ai.Decision
	err       error
	available bool
	calls     int
}

func (f *fakePredictor) Available() bool  { return f.available }
func (f *fakePredictor) ActiveID() string { return "fake:model" }
func (f *fakePredictor) Predict(ctx context.Context, input ai.PromptInput) (ai.Decision, error) {
	f.calls++
	return f.decision, f.err
}

// rallyCandles 尾部持续上涨，MACD 柱为正。
func rallyCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(i)*1.5
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     p - 1,
			High:     p + 0.5,
			Low:      p - 1.5,
			Close:    p,
			Volume:   2000,
		}
	}
	return out
}

// selloffCandles 尾部持续下跌，MACD 柱为负。
func selloffCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		p := 300 - float64(i)*1.5
		out[i] = market.Candle{
			OpenTime: int64(i) * 60_000,
			Open:     p + 1,
			High:     p + 1.5,
			Low:      p - 0.5,
			Close:    p,
			Volume:   2000,
		}
	}
	return out
}

// buyTunables 把阈值放宽到让上涨序列必出 BUY 候选，
// 只为了测引擎的融合逻辑而不是指标数值本身。
func buyTunables(minConfidence float64, allowShort bool) *config.Tunables {
	return config.NewTunables(&config.Config{
		Filter: config.FilterConfig{
			RSIOversold:    101, // 任何 RSI 都算"超卖"
			RSIOverbought:  200,
			VolumeRatioMin: 0.001,
			MinBodyPct:     0.001,
		},
		Trading: config.TradingConfig{MinConfidence: minConfidence, AllowShort: allowShort},
	})
}

func sellTunables(minConfidence float64, allowShort bool) *config.Tunables {
	return config.NewTunables(&config.Config{
		Filter: config.FilterConfig{
			RSIOversold:   -1,
			RSIOverbought: -1, // 任何 RSI 都算"超买"
		},
		Trading: config.TradingConfig{MinConfidence: minConfidence, AllowShort: allowShort},
	})
}

func TestEngine_InsufficientHistory(t *testing.T) {
	predictor := &fakePredictor{available: true}
	engine := NewEngine(predictor, buyTunables(80, false))

	sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(10))
	assert.Equal(t, ActionWait, sig.FinalAction)
	assert.Contains(t, sig.Reason, "insufficient candle history")
	assert.Zero(t, predictor.calls, "AI must not be consulted without indicators")
}

func TestEngine_NeutralSkipsAI(t *testing.T) {
	predictor := &fakePredictor{available: true}
	// 正常阈值下，温和上涨的 RSI 不会低于 30：候选 NEUTRAL
	tunables := config.NewTunables(&config.Config{
		Filter: config.FilterConfig{RSIOversold: 30, RSIOverbought: 99, VolumeRatioMin: 1.2, MinBodyPct: 0.5},
	})
	engine := NewEngine(predictor, tunables)

	sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
	assert.Equal(t, ActionWait, sig.FinalAction)
	assert.False(t, sig.HardFilterPassed)
	assert.Zero(t, predictor.calls, "NEUTRAL candidate must not burn AI quota")
}

func TestEngine_BuyConfirmation(t *testing.T) {
	t.Run("confidence above threshold emits BUY", func(t *testing.T) {
		predictor := &fakePredictor{
			available: true,
			decision:  ai.Decision{Action: ai.ActionBuy, Confidence: 85, Reason: "momentum confirmed", RiskLevel: ai.RiskMedium},
		}
		engine := NewEngine(predictor, buyTunables(80, false))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		require.Equal(t, ActionBuy, sig.FinalAction)
		assert.True(t, sig.HardFilterPassed)
		assert.Equal(t, 85.0, sig.Confidence)
		assert.Equal(t, "fake:model", sig.AIProviderID)
		assert.True(t, sig.Actionable())
	})

	t.Run("confidence below threshold emits WAIT", func(t *testing.T) {
		predictor := &fakePredictor{
			available: true,
			decision:  ai.Decision{Action: ai.ActionBuy, Confidence: 70, Reason: "weak setup", RiskLevel: ai.RiskHigh},
		}
		engine := NewEngine(predictor, buyTunables(80, false))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
		assert.Equal(t, 1, predictor.calls)
	})

	t.Run("ai disagreement with candidate emits WAIT", func(t *testing.T) {
		predictor := &fakePredictor{
			available: true,
			decision:  ai.Decision{Action: ai.ActionWait, Confidence: 95, Reason: "choppy market", RiskLevel: ai.RiskLow},
		}
		engine := NewEngine(predictor, buyTunables(80, false))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
	})

	t.Run("NaN confidence clamps to zero and waits", func(t *testing.T) {
		predictor := &fakePredictor{
			available: true,
			decision:  ai.Decision{Action: ai.ActionBuy, Confidence: math.NaN(), Reason: "?", RiskLevel: ai.RiskLow},
		}
		engine := NewEngine(predictor, buyTunables(80, false))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
		assert.Equal(t, 0.0, sig.Confidence)
	})
}

func TestEngine_AIUnavailable(t *testing.T) {
	t.Run("no predictor configured", func(t *testing.T) {
		engine := NewEngine(nil, buyTunables(80, false))
		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
		assert.Equal(t, "AI unavailable", sig.Reason)
	})

	t.Run("all providers exhausted", func(t *testing.T) {
		predictor := &fakePredictor{available: true, err: errors.New("all providers failed")}
		engine := NewEngine(predictor, buyTunables(80, false))
		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", rallyCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
		assert.Contains(t, sig.Reason, "AI unavailable")
		assert.True(t, sig.HardFilterPassed, "filter verdict survives AI outage")
	})
}

func TestEngine_ShortPolicy(t *testing.T) {
	t.Run("sell candidate waits when shorts disabled", func(t *testing.T) {
		predictor := &fakePredictor{available: true}
		engine := NewEngine(predictor, sellTunables(80, false))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", selloffCandles(60))
		assert.Equal(t, ActionWait, sig.FinalAction)
		assert.Equal(t, ActionSell, sig.Candidate)
		assert.Contains(t, sig.Reason, "short selling disabled")
		assert.Zero(t, predictor.calls, "disabled shorts must not burn AI quota")
	})

	t.Run("sell confirmed when shorts enabled", func(t *testing.T) {
		predictor := &fakePredictor{
			available: true,
			decision:  ai.Decision{Action: ai.ActionSell, Confidence: 90, Reason: "breakdown", RiskLevel: ai.RiskHigh},
		}
		engine := NewEngine(predictor, sellTunables(80, true))

		sig := engine.Evaluate(context.Background(), "BTCUSDT", "1h", selloffCandles(60))
		assert.Equal(t, ActionSell, sig.FinalAction)
		assert.Equal(t, 1, predictor.calls)
	})
}
