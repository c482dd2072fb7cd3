package signal

import (
	"context"
	"errors"
	"time"

	"tradepilot/internal/ai"
	"tradepilot/internal/config"
	"tradepilot/internal/indicator"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"

	"github.com/google/uuid"
)

// Predictor 是引擎对 AI 层的全部认知。
type Predictor interface {
	Available() bool
	ActiveID() string
	Predict(ctx context.Context, input ai.PromptInput) (ai.Decision, error)
}

// Engine 把硬过滤结果与 AI 校验融合为最终信号。
// 无状态：输出完全由输入决定；只有引擎有权把"拿不到可用决策"
// 翻译为保守的 WAIT。
type Engine struct {
	predictor Predictor
	tunables  *config.Tunables

	nowFn func() time.Time
}

func NewEngine(predictor Predictor, tunables *config.Tunables) *Engine {
	return &Engine{
		predictor: predictor,
		tunables:  tunables,
		nowFn:     time.Now,
	}
}

// Evaluate 执行一次完整评估：指标 → 硬过滤 → （必要时）AI 校验。
// 任何失败都收敛为带原因的 WAIT 信号，绝不让评估周期崩掉调度器。
func (e *Engine) Evaluate(ctx context.Context, symbol, timeframe string, candles []market.Candle) Signal {
	filterCfg := e.tunables.Filter()
	tradingCfg := e.tunables.Trading()

	base := Signal{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: e.nowFn().UTC(),
	}

	set, err := indicator.Compute(candles, indicator.Params{
		RSIPeriod:      filterCfg.RSIPeriod,
		MACDFast:       filterCfg.MACDFast,
		MACDSlow:       filterCfg.MACDSlow,
		MACDSignal:     filterCfg.MACDSignal,
		VolumeMAPeriod: filterCfg.VolumeMAPeriod,
	})
	if err != nil {
		var insufficient *indicator.InsufficientHistoryError
		if errors.As(err, &insufficient) {
			base.FinalAction = ActionWait
			base.Reason = insufficient.Error()
			return base
		}
		base.FinalAction = ActionWait
		base.Reason = "indicator computation failed: " + err.Error()
		return base
	}

	latest := candles[len(candles)-1]
	filter := EvaluateHardFilter(set, latest, filterCfg)
	base.Candidate = filter.Candidate
	base.HardFilterPassed = filter.Passed()

	// 1. 硬过滤未通过：WAIT，且绝不调用 AI（成本控制）
	if !filter.Passed() {
		base.FinalAction = ActionWait
		base.Reason = filter.Reason
		return base
	}

	// 2. 做空候选：显式的长仓-only 策略。SELL 候选仅作观察记录，
	//    不消耗 AI 配额，最终动作 WAIT。
	if filter.Candidate == ActionSell && !tradingCfg.AllowShort {
		base.FinalAction = ActionWait
		base.Reason = "short selling disabled by policy: " + filter.Reason
		logger.Infof("signal: %s@%s SELL candidate observed but shorts disabled (%s)",
			symbol, timeframe, filter.Reason)
		return base
	}

	// 3. 硬过滤通过但 AI 不可用：保守 WAIT
	if e.predictor == nil || !e.predictor.Available() {
		base.FinalAction = ActionWait
		base.Reason = "AI unavailable"
		return base
	}

	decision, err := e.predictor.Predict(ctx, ai.PromptInput{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Latest:     latest,
		Indicators: set,
		Candidate:  filter.Candidate,
	})
	if err != nil {
		// 所有回退耗尽或响应非法：无决策即 WAIT，绝不伪造方向
		base.FinalAction = ActionWait
		base.Reason = "AI unavailable: " + err.Error()
		logger.Warnf("signal: %s@%s AI consultation failed: %v", symbol, timeframe, err)
		return base
	}

	decision.Confidence = ai.ClampConfidence(decision.Confidence)
	base.AIDecision = &decision
	base.AIProviderID = e.predictor.ActiveID()
	base.Confidence = decision.Confidence

	// 4. 硬过滤是必要条件，AI 置信度才是充分条件
	if decision.Action == ai.ActionBuy &&
		filter.Candidate == ActionBuy &&
		decision.Confidence >= tradingCfg.MinConfidence {
		base.FinalAction = ActionBuy
		base.Reason = decision.Reason
		return base
	}
	if tradingCfg.AllowShort &&
		decision.Action == ai.ActionSell &&
		filter.Candidate == ActionSell &&
		decision.Confidence >= tradingCfg.MinConfidence {
		base.FinalAction = ActionSell
		base.Reason = decision.Reason
		return base
	}

	base.FinalAction = ActionWait
	base.Reason = decision.Reason
	return base
}
