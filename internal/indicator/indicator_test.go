package indicator

import (
	"math"
	"testing"

	"tradepilot/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCandles(n int, priceAt func(i int) float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := 0; i < n; i++ {
		p := priceAt(i)
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      p * 0.999,
			High:      p * 1.002,
			Low:       p * 0.997,
			Close:     p,
			Volume:    1000 + float64(i%7)*50,
		}
	}
	return out
}

func TestParams_MinCandles(t *testing.T) {
	t.Run("defaults need 36", func(t *testing.T) {
		// MACD 26+9 是最长回看，再加一根缓冲
		assert.Equal(t, 36, Params{}.MinCandles())
	})
	t.Run("dominated by rsi when larger", func(t *testing.T) {
		p := Params{RSIPeriod: 50, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, VolumeMAPeriod: 20}
		assert.Equal(t, 52, p.MinCandles())
	})
	t.Run("dominated by volume ma when larger", func(t *testing.T) {
		p := Params{RSIPeriod: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, VolumeMAPeriod: 60}
		assert.Equal(t, 61, p.MinCandles())
	})
}

func TestCompute_InsufficientHistory(t *testing.T) {
	candles := makeCandles(35, func(i int) float64 { return 100 })
	_, err := Compute(candles, Params{})
	require.Error(t, err)

	var insufficient *InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 36, insufficient.Need)
	assert.Equal(t, 35, insufficient.Got)
}

func TestCompute_Bounds(t *testing.T) {
	t.Run("monotonic rally keeps rsi in range", func(t *testing.T) {
		candles := makeCandles(60, func(i int) float64 { return 100 + float64(i)*2 })
		set, err := Compute(candles, Params{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, set.RSI, 0.0)
		assert.LessOrEqual(t, set.RSI, 100.0)
		assert.Greater(t, set.RSI, 50.0, "sustained rally should read overbought-ish")
		assert.Greater(t, set.VolumeMA, 0.0)
		assert.False(t, math.IsNaN(set.MACD.Histogram))
	})

	t.Run("monotonic selloff reads oversold", func(t *testing.T) {
		candles := makeCandles(60, func(i int) float64 { return 300 - float64(i)*2 })
		set, err := Compute(candles, Params{})
		require.NoError(t, err)
		assert.Less(t, set.RSI, 50.0)
		assert.GreaterOrEqual(t, set.RSI, 0.0)
	})

	t.Run("histogram equals line minus signal", func(t *testing.T) {
		candles := makeCandles(80, func(i int) float64 { return 100 + 10*math.Sin(float64(i)/5) })
		set, err := Compute(candles, Params{})
		require.NoError(t, err)
		assert.InDelta(t, set.MACD.Line-set.MACD.Signal, set.MACD.Histogram, 1e-9)
	})
}

func TestCompute_InputOrderIrrelevant(t *testing.T) {
	asc := makeCandles(60, func(i int) float64 { return 100 + float64(i) })
	desc := make([]market.Candle, len(asc))
	for i, c := range asc {
		desc[len(asc)-1-i] = c
	}

	fromAsc, err := Compute(asc, Params{})
	require.NoError(t, err)
	fromDesc, err := Compute(desc, Params{})
	require.NoError(t, err)
	assert.Equal(t, fromAsc, fromDesc)

	// 防御性拷贝：调用方切片不被重排
	assert.Greater(t, desc[0].OpenTime, desc[len(desc)-1].OpenTime)
}
