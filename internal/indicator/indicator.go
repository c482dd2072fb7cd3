package indicator

import (
	"fmt"

	"tradepilot/internal/market"

	talib "github.com/markcheno/go-talib"
)

// historyBuffer 在最长回看周期之上额外保留的K线数量，
// 保证慢速 EMA 与信号线都有可用输出。
const historyBuffer = 1

// Params 指标参数。零值字段使用标准默认（RSI14、MACD 12/26/9、VolMA20）。
type Params struct {
	RSIPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	VolumeMAPeriod int
}

func (p Params) withDefaults() Params {
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.MACDFast <= 0 {
		p.MACDFast = 12
	}
	if p.MACDSlow <= 0 {
		p.MACDSlow = 26
	}
	if p.MACDSignal <= 0 {
		p.MACDSignal = 9
	}
	if p.VolumeMAPeriod <= 0 {
		p.VolumeMAPeriod = 20
	}
	return p
}

// MinCandles 返回计算全部指标所需的最小K线数。
func (p Params) MinCandles() int {
	p = p.withDefaults()
	min := p.RSIPeriod + 1
	if n := p.MACDSlow + p.MACDSignal; n > min {
		min = n
	}
	if p.VolumeMAPeriod > min {
		min = p.VolumeMAPeriod
	}
	return min + historyBuffer
}

// MACD 三元组。
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Set 一次评估使用的指标快照（派生数据，不落库）。
type Set struct {
	RSI      float64 `json:"rsi"`
	MACD     MACD    `json:"macd"`
	VolumeMA float64 `json:"volume_ma"`
}

// InsufficientHistoryError K线历史不足，重试无意义，等下一根K线。
type InsufficientHistoryError struct {
	Need int
	Got  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient candle history: need %d, got %d", e.Need, e.Got)
}

// Compute 从升序K线序列计算 RSI/MACD/成交量均线。
// 输入会被防御性重排；历史不足返回 *InsufficientHistoryError 而非静默补零。
func Compute(candles []market.Candle, p Params) (Set, error) {
	p = p.withDefaults()
	need := p.MinCandles()
	if len(candles) < need {
		return Set{}, &InsufficientHistoryError{Need: need, Got: len(candles)}
	}

	sorted := make([]market.Candle, len(candles))
	copy(sorted, candles)
	market.SortAscending(sorted)

	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, c := range sorted {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	rsiSeries := talib.Rsi(closes, p.RSIPeriod)
	if len(rsiSeries) == 0 {
		return Set{}, fmt.Errorf("rsi: empty talib output")
	}
	rsi := clamp(rsiSeries[len(rsiSeries)-1], 0, 100)

	macdLine, signalLine, hist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if len(macdLine) == 0 || len(signalLine) == 0 || len(hist) == 0 {
		return Set{}, fmt.Errorf("macd: empty talib output")
	}

	volSeries := talib.Sma(volumes, p.VolumeMAPeriod)
	if len(volSeries) == 0 {
		return Set{}, fmt.Errorf("volume ma: empty talib output")
	}
	volMA := volSeries[len(volSeries)-1]
	if volMA < 0 {
		volMA = 0
	}

	return Set{
		RSI: rsi,
		MACD: MACD{
			Line:      macdLine[len(macdLine)-1],
			Signal:    signalLine[len(signalLine)-1],
			Histogram: hist[len(hist)-1],
		},
		VolumeMA: volMA,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
