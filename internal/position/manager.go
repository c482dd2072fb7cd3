package position

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradepilot/internal/config"
	"tradepilot/internal/logger"
	"tradepilot/internal/store/gormstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TriggerTakeProfit = "TAKE_PROFIT"
	TriggerStopLoss   = "STOP_LOSS"
)

// PriceSource 价格依赖（market.Service 满足；自带K线回退）。
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Store 仓位持久化依赖。
type Store interface {
	FindOpenPosition(ctx context.Context, symbol string) (*gormstore.PositionRecord, error)
	InsertPosition(ctx context.Context, rec *gormstore.PositionRecord) error
	ClosePosition(ctx context.Context, id string, exitPrice, pnl float64, trigger string, closedAt time.Time) (bool, error)
	ListOpenPositions(ctx context.Context) ([]gormstore.PositionRecord, error)
}

// Manager 仓位生命周期：NONE → OPEN → CLOSED（终态）。
// 同一标的最多一张 OPEN 仓位；开仓的 check-then-act 用单把互斥锁
// 串行化，避免并发评估周期对同一标的双开。
type Manager struct {
	store    Store
	prices   PriceSource
	tunables *config.Tunables

	openMu sync.Mutex
	nowFn  func() time.Time
}

func NewManager(store Store, prices PriceSource, tunables *config.Tunables) *Manager {
	return &Manager{
		store:    store,
		prices:   prices,
		tunables: tunables,
		nowFn:    time.Now,
	}
}

// Open 在无现存 OPEN 仓位时开仓；已有仓位则幂等跳过。
// price<=0 时取实时行情价。
func (m *Manager) Open(ctx context.Context, symbol string, price, size float64) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("position: symbol is required")
	}
	if size <= 0 {
		return fmt.Errorf("position: size must be positive")
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()

	existing, err := m.store.FindOpenPosition(ctx, symbol)
	if err != nil {
		return fmt.Errorf("position: lookup open position for %s: %w", symbol, err)
	}
	if existing != nil {
		logger.Infof("position: %s already has open position %s, skip", symbol, existing.ID)
		return nil
	}

	if price <= 0 {
		price, err = m.prices.LatestPrice(ctx, symbol)
		if err != nil {
			return fmt.Errorf("position: entry price unavailable for %s: %w", symbol, err)
		}
	}

	rec := &gormstore.PositionRecord{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		EntryPrice: price,
		Size:       size,
		Status:     gormstore.PositionStatusOpen,
		OpenTime:   m.nowFn().UTC(),
	}
	if err := m.store.InsertPosition(ctx, rec); err != nil {
		return fmt.Errorf("position: insert for %s: %w", symbol, err)
	}
	logger.Infof("position: opened %s id=%s entry=%.6f size=%.4f", symbol, rec.ID, price, size)
	return nil
}

// MonitorTick 检查全部 OPEN 仓位的止盈止损。
// 单个仓位取价失败只跳过本轮，下个 tick 重试，不影响其余仓位。
func (m *Manager) MonitorTick(ctx context.Context) error {
	open, err := m.store.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("position: list open positions: %w", err)
	}
	for _, rec := range open {
		current, err := m.prices.LatestPrice(ctx, rec.Symbol)
		if err != nil {
			logger.Warnf("position: price fetch failed for %s, skipping this tick: %v", rec.Symbol, err)
			continue
		}
		m.checkExit(ctx, rec, current)
	}
	return nil
}

func (m *Manager) checkExit(ctx context.Context, rec gormstore.PositionRecord, current float64) {
	trading := m.tunables.Trading()

	entry := decimal.NewFromFloat(rec.EntryPrice)
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	takeProfit := entry.Mul(one.Add(decimal.NewFromFloat(trading.TakeProfitPct).Div(hundred)))
	stopLoss := entry.Mul(one.Sub(decimal.NewFromFloat(trading.StopLossPct).Div(hundred)))
	price := decimal.NewFromFloat(current)

	var trigger string
	switch {
	case price.GreaterThan(takeProfit):
		trigger = TriggerTakeProfit
	case price.LessThan(stopLoss):
		trigger = TriggerStopLoss
	default:
		return
	}

	pnl, _ := price.Sub(entry).Mul(decimal.NewFromFloat(rec.Size)).Float64()
	closed, err := m.store.ClosePosition(ctx, rec.ID, current, pnl, trigger, m.nowFn().UTC())
	if err != nil {
		logger.Errorf("position: close %s (%s) failed: %v", rec.ID, rec.Symbol, err)
		return
	}
	if !closed {
		// 已被其它路径关闭，条件更新未命中
		logger.Warnf("position: %s already closed, skip %s", rec.ID, trigger)
		return
	}
	logger.Infof("position: closed %s %s trigger=%s entry=%.6f exit=%.6f pnl=%.4f",
		rec.Symbol, rec.ID, trigger, rec.EntryPrice, current, pnl)
}
