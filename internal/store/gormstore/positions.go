package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// FindOpenPosition 查找该标的的 OPEN 仓位；没有时返回 (nil, nil)。
func (s *Store) FindOpenPosition(ctx context.Context, symbol string) (*PositionRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var rec PositionRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, PositionStatusOpen).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertPosition 写入一条新仓位记录。
func (s *Store) InsertPosition(ctx context.Context, rec *PositionRecord) error {
	if rec == nil {
		return fmt.Errorf("gorm store: nil position record")
	}
	rec.Symbol = strings.ToUpper(strings.TrimSpace(rec.Symbol))
	return s.db.WithContext(ctx).Create(rec).Error
}

// ClosePosition 将 OPEN 仓位原子地转为 CLOSED。
// 条件更新保证同一仓位只会被关闭一次；已关闭时返回 (false, nil)。
func (s *Store) ClosePosition(ctx context.Context, id string, exitPrice, pnl float64, trigger string, closedAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&PositionRecord{}).
		Where("id = ? AND status = ?", id, PositionStatusOpen).
		Updates(map[string]any{
			"status":     PositionStatusClosed,
			"exit_price": exitPrice,
			"pnl":        pnl,
			"trigger":    trigger,
			"close_time": closedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListOpenPositions 返回全部 OPEN 仓位。
func (s *Store) ListOpenPositions(ctx context.Context) ([]PositionRecord, error) {
	var out []PositionRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", PositionStatusOpen).
		Order("open_time ASC").
		Find(&out).Error
	return out, err
}

// ListPositions 返回最近的仓位记录（含已关闭），按开仓时间倒序。
func (s *Store) ListPositions(ctx context.Context, limit int) ([]PositionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []PositionRecord
	err := s.db.WithContext(ctx).
		Order("open_time DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
