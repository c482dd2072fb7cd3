package gormstore

import (
	"context"
	"fmt"
	"strings"

	"tradepilot/internal/market"

	"gorm.io/gorm/clause"
)

// UpsertCandles 以 (symbol, interval, open_time) 为冲突键写入；
// 已存在的行更新价格/量字段，保证重放安全。
func (s *Store) UpsertCandles(ctx context.Context, symbol, interval string, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" || interval == "" {
		return fmt.Errorf("gorm store: symbol/interval cannot be empty")
	}
	rows := make([]CandleRecord, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, CandleRecord{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  c.OpenTime,
			CloseTime: c.CloseTime,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "open_time"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"close_time", "open", "high", "low", "close", "volume",
		}),
	}).Create(&rows).Error
}

// CandlesAscending 返回最近 limit 根 K 线，按开盘时间升序。
func (s *Store) CandlesAscending(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if limit <= 0 {
		limit = 100
	}
	var rows []CandleRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", symbol, interval).
		Order("open_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, market.Candle{
			OpenTime:  r.OpenTime,
			CloseTime: r.CloseTime,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return out, nil
}

// LatestOpenTime 返回已存储的最大开盘时间，没有数据时为 0。
func (s *Store) LatestOpenTime(ctx context.Context, symbol, interval string) (int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	var ts *int64
	err := s.db.WithContext(ctx).
		Model(&CandleRecord{}).
		Where("symbol = ? AND interval = ?", symbol, interval).
		Select("MAX(open_time)").
		Scan(&ts).Error
	if err != nil {
		return 0, err
	}
	if ts == nil {
		return 0, nil
	}
	return *ts, nil
}
