package market

import "context"

// FetchRequest 描述一次 K 线拉取。Start/End 为毫秒时间戳，0 表示不限。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64
	End      int64
	Limit    int
}

// Source 行情数据源。实现方负责把交易所返回映射为标准 Candle。
type Source interface {
	Name() string
	FetchCandles(ctx context.Context, req FetchRequest) ([]Candle, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}
