package app

import (
	"context"
	"fmt"

	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/market"
	"tradepilot/internal/position"
	"tradepilot/internal/signal"
	"tradepilot/internal/store/gormstore"
)

// LiveService 驱动单次评估周期：同步K线 → 评估 → 落库 → 必要时开仓。
// 周期内的任何失败都以 WAIT 信号收尾并留给下个 tick，绝不上抛崩掉调度器。
type LiveService struct {
	market    *market.Service
	engine    *signal.Engine
	positions *position.Manager
	store     *gormstore.Store
	tunables  *config.Tunables
}

func NewLiveService(mkt *market.Service, engine *signal.Engine, positions *position.Manager, store *gormstore.Store, tunables *config.Tunables) *LiveService {
	return &LiveService{
		market:    mkt,
		engine:    engine,
		positions: positions,
		store:     store,
		tunables:  tunables,
	}
}

// RunCycle 同一 (symbol, timeframe) 的周期由调度器保证不重叠。
func (s *LiveService) RunCycle(ctx context.Context, symbol, timeframe string) error {
	candles, err := s.market.SyncCandles(ctx, symbol, timeframe)
	if err != nil {
		return fmt.Errorf("sync candles %s@%s: %w", symbol, timeframe, err)
	}

	sig := s.engine.Evaluate(ctx, symbol, timeframe, candles)
	s.persistSignal(ctx, sig)

	logger.Infof("cycle %s@%s: candidate=%s final=%s confidence=%.0f reason=%s",
		symbol, timeframe, orDash(sig.Candidate), sig.FinalAction, sig.Confidence, sig.Reason)

	if sig.FinalAction != signal.ActionBuy {
		return nil
	}

	latestClose := candles[len(candles)-1].Close
	if latestClose <= 0 {
		return fmt.Errorf("open %s: non-positive close price", symbol)
	}
	size := s.tunables.Trading().PositionSizeUSD / latestClose
	if err := s.positions.Open(ctx, symbol, latestClose, size); err != nil {
		return fmt.Errorf("open position %s: %w", symbol, err)
	}
	return nil
}

func (s *LiveService) persistSignal(ctx context.Context, sig signal.Signal) {
	rec := &gormstore.SignalRecord{
		ID:               sig.ID,
		Symbol:           sig.Symbol,
		Timeframe:        sig.Timeframe,
		FinalAction:      sig.FinalAction,
		Confidence:       sig.Confidence,
		HardFilterPassed: sig.HardFilterPassed,
		CandidateAction:  sig.Candidate,
		Reason:           sig.Reason,
		AIProviderID:     sig.AIProviderID,
		CreatedAt:        sig.Timestamp,
	}
	if sig.AIDecision != nil {
		rec.AIAction = sig.AIDecision.Action
		rec.AIConfidence = sig.AIDecision.Confidence
		rec.AIRiskLevel = sig.AIDecision.RiskLevel
	}
	if err := s.store.InsertSignal(ctx, rec); err != nil {
		logger.Errorf("persist signal %s@%s failed: %v", sig.Symbol, sig.Timeframe, err)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
