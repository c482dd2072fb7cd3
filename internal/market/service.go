package market

import (
	"context"
	"fmt"
	"strings"

	"tradepilot/internal/logger"
	"tradepilot/internal/ratelimit"
	"tradepilot/internal/retry"
)

// CandleStore 行情持久化依赖（由 gormstore 实现）。
type CandleStore interface {
	UpsertCandles(ctx context.Context, symbol, interval string, candles []Candle) error
	CandlesAscending(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	LatestOpenTime(ctx context.Context, symbol, interval string) (int64, error)
}

// Service 负责同步 K 线并提供最新价格。
// 所有出站请求都经过交易所令牌桶与重试执行器。
type Service struct {
	source  Source
	store   CandleStore
	limiter *ratelimit.Bucket
	retrier *retry.Executor
	limit   int
}

func NewService(source Source, store CandleStore, limiter *ratelimit.Bucket, retrier *retry.Executor, candleLimit int) *Service {
	if candleLimit <= 0 {
		candleLimit = 100
	}
	return &Service{
		source:  source,
		store:   store,
		limiter: limiter,
		retrier: retrier,
		limit:   candleLimit,
	}
}

// SyncCandles 增量拉取并 upsert，然后返回最近的升序 K 线序列。
// 从上次已存储的开盘时间重新拉起（含重叠一根），覆盖未收盘数据。
func (s *Service) SyncCandles(ctx context.Context, symbol, timeframe string) ([]Candle, error) {
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	since, err := s.store.LatestOpenTime(ctx, symbol, tf.Key)
	if err != nil {
		return nil, fmt.Errorf("load latest open time %s@%s: %w", symbol, tf.Key, err)
	}

	req := FetchRequest{Symbol: symbol, Interval: tf.SourceInterval, Limit: s.limit}
	if since > 0 {
		req.Start = since
	}

	var fetched []Candle
	err = s.guarded(ctx, fmt.Sprintf("fetch %s@%s", symbol, tf.Key), func(ctx context.Context) error {
		var ferr error
		fetched, ferr = s.source.FetchCandles(ctx, req)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		if err := s.store.UpsertCandles(ctx, symbol, tf.Key, fetched); err != nil {
			return nil, fmt.Errorf("persist candles %s@%s: %w", symbol, tf.Key, err)
		}
		logger.Debugf("market: synced %d candles %s@%s since=%d", len(fetched), symbol, tf.Key, since)
	}
	return s.store.CandlesAscending(ctx, symbol, tf.Key, s.limit)
}

// LatestPrice 取最新成交价；行情接口失败时回退到最近一根 1m K 线收盘价。
// 两路都失败时返回错误，由调用方决定跳过本轮。
func (s *Service) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var price float64
	err := s.guarded(ctx, fmt.Sprintf("ticker %s", symbol), func(ctx context.Context) error {
		var perr error
		price, perr = s.source.LatestPrice(ctx, symbol)
		return perr
	})
	if err == nil && price > 0 {
		return price, nil
	}
	logger.Warnf("market: ticker failed for %s, falling back to last close: %v", symbol, err)

	var candles []Candle
	ferr := s.guarded(ctx, fmt.Sprintf("fallback kline %s", symbol), func(ctx context.Context) error {
		var cerr error
		candles, cerr = s.source.FetchCandles(ctx, FetchRequest{Symbol: symbol, Interval: "1m", Limit: 1})
		return cerr
	})
	if ferr != nil {
		return 0, fmt.Errorf("price unavailable for %s: ticker: %v, kline fallback: %w", symbol, err, ferr)
	}
	if len(candles) == 0 || candles[len(candles)-1].Close <= 0 {
		return 0, fmt.Errorf("price unavailable for %s: empty kline fallback", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

func (s *Service) guarded(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return s.retrier.Do(ctx, name, func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		return op(ctx)
	})
}
