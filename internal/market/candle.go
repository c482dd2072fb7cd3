package market

import "sort"

// Candle 单根 K 线。OpenTime/CloseTime 为毫秒时间戳；
// 同一 (symbol, interval) 下 OpenTime 唯一。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Body 返回实体涨跌幅（|close-open|/open），open<=0 时为 0。
func (c Candle) Body() float64 {
	if c.Open <= 0 {
		return 0
	}
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	return body / c.Open
}

// SortAscending 按开盘时间升序排序（防御性：指标计算假设有序输入）。
func SortAscending(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
}
