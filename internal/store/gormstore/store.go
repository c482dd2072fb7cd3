package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements candle, position and signal persistence using Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

// CandleRecord 按 (symbol, interval, open_time) 唯一，支持 upsert 重放。
type CandleRecord struct {
	ID        uint    `gorm:"primaryKey"`
	Symbol    string  `gorm:"size:32;uniqueIndex:idx_candle_key,priority:1"`
	Interval  string  `gorm:"size:8;uniqueIndex:idx_candle_key,priority:2"`
	OpenTime  int64   `gorm:"uniqueIndex:idx_candle_key,priority:3"`
	CloseTime int64   `gorm:"not null"`
	Open      float64 `gorm:"not null"`
	High      float64 `gorm:"not null"`
	Low       float64 `gorm:"not null"`
	Close     float64 `gorm:"not null"`
	Volume    float64 `gorm:"not null"`
}

func (CandleRecord) TableName() string { return "candles" }

const (
	PositionStatusOpen   = "OPEN"
	PositionStatusClosed = "CLOSED"
)

// PositionRecord 仓位记录。状态只会 OPEN→CLOSED，不做物理删除。
type PositionRecord struct {
	ID         string  `gorm:"primaryKey;size:36"`
	Symbol     string  `gorm:"size:32;index"`
	EntryPrice float64 `gorm:"not null"`
	ExitPrice  float64
	Size       float64 `gorm:"not null"`
	Status     string  `gorm:"size:8;index"`
	Pnl        float64
	Trigger    string `gorm:"size:16"`
	OpenTime   time.Time
	CloseTime  *time.Time
}

func (PositionRecord) TableName() string { return "positions" }

// SignalRecord 每次评估周期落一条最终信号，便于复盘。
type SignalRecord struct {
	ID               string  `gorm:"primaryKey;size:36"`
	Symbol           string  `gorm:"size:32;index"`
	Timeframe        string  `gorm:"size:8"`
	FinalAction      string  `gorm:"size:8"`
	Confidence       float64 `gorm:"not null"`
	HardFilterPassed bool
	CandidateAction  string `gorm:"size:8"`
	Reason           string
	AIAction         string `gorm:"size:8"`
	AIConfidence     float64
	AIRiskLevel      string `gorm:"size:8"`
	AIProviderID     string `gorm:"size:64"`
	CreatedAt        time.Time
}

func (SignalRecord) TableName() string { return "signals" }

// New opens (or creates) the SQLite database at path and migrates the schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CandleRecord{}, &PositionRecord{}, &SignalRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
