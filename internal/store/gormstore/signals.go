package gormstore

import (
	"context"
	"fmt"
)

// InsertSignal 持久化一条评估周期的最终信号。
func (s *Store) InsertSignal(ctx context.Context, rec *SignalRecord) error {
	if rec == nil {
		return fmt.Errorf("gorm store: nil signal record")
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// RecentSignals 按时间倒序返回最近 limit 条信号。
func (s *Store) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []SignalRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
